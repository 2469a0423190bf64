package events

import (
	"testing"

	"github.com/robomesh/go-robomesh/pkg/types"
)

func TestFromEventKind(t *testing.T) {
	supported := map[types.EventKind]Kind{
		types.EventRequestedQoSIncompatible:     KindRequestedQoSIncompatible,
		types.EventMessageLost:                  KindMessageLost,
		types.EventSubscriptionIncompatibleType: KindSubscriptionIncompatibleType,
		types.EventSubscriptionMatched:          KindSubscriptionMatched,
		types.EventOfferedQoSIncompatible:       KindOfferedQoSIncompatible,
		types.EventPublisherIncompatibleType:    KindPublisherIncompatibleType,
		types.EventPublicationMatched:           KindPublicationMatched,
	}
	for in, want := range supported {
		got := FromEventKind(in)
		if got != want {
			t.Errorf("FromEventKind(%v) = %v, want %v", in, got, want)
		}
		if !got.Valid() {
			t.Errorf("%v 应为有效索引", got)
		}
	}

	unsupported := []types.EventKind{
		types.EventInvalid,
		types.EventLivelinessChanged,
		types.EventRequestedDeadlineMissed,
		types.EventLivelinessLost,
		types.EventOfferedDeadlineMissed,
		types.EventKind(99),
	}
	for _, in := range unsupported {
		if got := FromEventKind(in); got != KindInvalid {
			t.Errorf("FromEventKind(%v) = %v, want KindInvalid", in, got)
		}
	}
	if KindInvalid.Valid() {
		t.Error("KindInvalid 不应有效")
	}
}
