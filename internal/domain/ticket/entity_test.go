package ticket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTicketType(t *testing.T) {
	tests := []struct {
		name        string
		eventID     string
		typeName    string
		price       int
		quantity    int
		wantErr     bool
		errExpected error
	}{
		{
			name: "正常なチケット種別作成", eventID: "event-1", typeName: "VIP",
			price: 15000, quantity: 50, wantErr: false,
		},
		{
			name: "イベントID未指定", eventID: "", typeName: "VIP",
			price: 15000, quantity: 50, wantErr: true, errExpected: ErrEventIDRequired,
		},
		{
			name: "種別名未指定", eventID: "event-1", typeName: "",
			price: 15000, quantity: 50, wantErr: true, errExpected: ErrTicketTypeNameRequired,
		},
		{
			name: "負の価格", eventID: "event-1", typeName: "一般",
			price: -1, quantity: 50, wantErr: true, errExpected: ErrInvalidPrice,
		},
		{
			name: "枚数ゼロ", eventID: "event-1", typeName: "一般",
			price: 5000, quantity: 0, wantErr: true, errExpected: ErrInvalidQuantity,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			typ := NewTicketType(tt.eventID, tt.typeName, tt.price, tt.quantity, nil)
			err := typ.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, tt.errExpected)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.quantity, typ.TotalQuantity)
		})
	}
}

func TestNewTicket(t *testing.T) {
	tk := NewTicket("event-1", "type-1", "user-1", 15000)

	require.NoError(t, tk.Validate())
	assert.Equal(t, StatusValid, tk.Status)
	assert.Equal(t, 15000, tk.Amount)
	assert.WithinDuration(t, time.Now(), tk.PurchasedAt, time.Second)
}

func TestTicket_CountsAgainstCapacity(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusValid, true},
		{StatusUsed, true},
		{StatusRefunded, false},
		{StatusCancelled, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			tk := NewTicket("event-1", "type-1", "user-1", 1000)
			tk.Status = tt.status
			assert.Equal(t, tt.want, tk.CountsAgainstCapacity())
		})
	}
}

func TestTicket_Use(t *testing.T) {
	tk := NewTicket("event-1", "type-1", "user-1", 1000)

	require.NoError(t, tk.Use())
	assert.Equal(t, StatusUsed, tk.Status)

	// 使用済みチケットの再使用はエラー
	assert.ErrorIs(t, tk.Use(), ErrTicketNotValid)
}

func TestTicket_Refund(t *testing.T) {
	tk := NewTicket("event-1", "type-1", "user-1", 1000)

	require.NoError(t, tk.Refund())
	assert.Equal(t, StatusRefunded, tk.Status)
	assert.False(t, tk.CountsAgainstCapacity())

	assert.ErrorIs(t, tk.Refund(), ErrTicketAlreadyReleased)
	assert.ErrorIs(t, tk.Cancel(), ErrTicketAlreadyReleased)
}

func TestTicket_Cancel(t *testing.T) {
	tk := NewTicket("event-1", "type-1", "user-1", 1000)

	require.NoError(t, tk.Cancel())
	assert.Equal(t, StatusCancelled, tk.Status)
	assert.False(t, tk.CountsAgainstCapacity())
}
