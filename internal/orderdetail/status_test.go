package orderdetail

import (
	"testing"

	"xianyu-autosell/internal/domain/autosell"
	"xianyu-autosell/internal/domain/order"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name string
		code order.Status
		text string
		want Lifecycle
	}{
		{"code pending shipment", order.StatusPendingShipment, "", LifecyclePendingShipment},
		{"text urges shipping", 7, "请尽快发货", LifecyclePendingShipment},
		{"text buyer paid", order.StatusUnknown, "买家已付款，等待卖家发货", LifecyclePendingShipment},
		{"code pending receipt", order.StatusPendingReceipt, "", LifecyclePendingReceipt},
		{"text pending receipt", 11, "待收货", LifecyclePendingReceipt},
		{"shipment wins over receipt", order.StatusPendingReceipt, "待发货", LifecyclePendingShipment},
		{"pending payment", order.StatusPendingPayment, "待付款", LifecycleOther},
		{"placeholder", order.StatusUnknown, order.PlaceholderStatusText, LifecycleOther},
		{"completed", order.StatusCompleted, "交易成功", LifecycleOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.code, tt.text))
		})
	}
}

func TestTransitionFiresOnlyOnEntry(t *testing.T) {
	trigger, ok := Transition(LifecycleOther, LifecyclePendingShipment)
	assert.True(t, ok)
	assert.Equal(t, autosell.TriggerPaid, trigger)

	_, ok = Transition(LifecyclePendingShipment, LifecyclePendingShipment)
	assert.False(t, ok)

	trigger, ok = Transition(LifecyclePendingShipment, LifecyclePendingReceipt)
	assert.True(t, ok)
	assert.Equal(t, autosell.TriggerConfirmed, trigger)

	_, ok = Transition(LifecyclePendingReceipt, LifecycleOther)
	assert.False(t, ok)
}

func TestStatusText(t *testing.T) {
	assert.Equal(t, "请尽快发货", StatusText(order.StatusPendingShipment, " 请尽快发货 "))
	assert.Equal(t, "待收货", StatusText(order.StatusPendingReceipt, ""))
	assert.Equal(t, order.UnknownStatusText, StatusText(42, ""))
}
