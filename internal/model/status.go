package model

import (
	"errors"
	"fmt"
)

type OrderStatus string

const (
	StatusPendingPayment OrderStatus = "pending_payment"
	StatusPaid           OrderStatus = "paid"
	StatusProducing      OrderStatus = "producing"
	StatusReadyToShip    OrderStatus = "ready_to_ship"
	StatusShipping       OrderStatus = "shipping"
	StatusDelivered      OrderStatus = "delivered"
	StatusCancelled      OrderStatus = "cancelled"
)

var (
	ErrUnknownStatus     = errors.New("unknown order status")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// StatusInfo is presentation data for a status.
type StatusInfo struct {
	Label       string `json:"label"`
	Description string `json:"description"`
	Step        int    `json:"step"`
}

var statusConfig = map[OrderStatus]StatusInfo{
	StatusPendingPayment: {Label: "입금 대기", Description: "주문이 접수되었습니다. 입금 안내를 확인해주세요.", Step: 1},
	StatusPaid:           {Label: "입금 확인", Description: "입금이 확인되었습니다. 곧 제작을 시작합니다.", Step: 2},
	StatusProducing:      {Label: "제작 중", Description: "플립북을 정성껏 제작하고 있습니다.", Step: 3},
	StatusReadyToShip:    {Label: "배송 준비", Description: "제작이 완료되어 배송 준비 중입니다.", Step: 4},
	StatusShipping:       {Label: "배송 중", Description: "플립북이 배송 중입니다.", Step: 5},
	StatusDelivered:      {Label: "배송 완료", Description: "배송이 완료되었습니다. 소중한 추억을 간직하세요!", Step: 6},
	StatusCancelled:      {Label: "취소됨", Description: "주문이 취소되었습니다.", Step: 0},
}

// forward states in step order
var progression = []OrderStatus{
	StatusPendingPayment,
	StatusPaid,
	StatusProducing,
	StatusReadyToShip,
	StatusShipping,
	StatusDelivered,
}

func ParseOrderStatus(s string) (OrderStatus, error) {
	st := OrderStatus(s)
	if _, ok := statusConfig[st]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
	}
	return st, nil
}

func (s OrderStatus) Valid() bool {
	_, ok := statusConfig[s]
	return ok
}

// Info returns label, description and step. Unknown statuses get a zero StatusInfo.
func (s OrderStatus) Info() StatusInfo {
	return statusConfig[s]
}

func (s OrderStatus) Step() int { return statusConfig[s].Step }

func (s OrderStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// OrderedStatuses returns the forward states, pending_payment through delivered.
func OrderedStatuses() []OrderStatus {
	out := make([]OrderStatus, len(progression))
	copy(out, progression)
	return out
}

// AllStatuses is OrderedStatuses plus cancelled, in dropdown order.
func AllStatuses() []OrderStatus {
	return append(OrderedStatuses(), StatusCancelled)
}

// TransitionPolicy decides whether an admin may move an order from one status to another.
type TransitionPolicy interface {
	Check(from, to OrderStatus) error
}

const (
	PolicyPermissive  = "permissive"
	PolicyForwardOnly = "forward_only"
)

// NewTransitionPolicy maps a config name to a policy; unknown names fall back to permissive.
func NewTransitionPolicy(name string) TransitionPolicy {
	if name == PolicyForwardOnly {
		return ForwardOnlyPolicy{}
	}
	return PermissivePolicy{}
}

// PermissivePolicy accepts any known target status, including backward moves.
type PermissivePolicy struct{}

func (PermissivePolicy) Check(_, to OrderStatus) error {
	if !to.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, to)
	}
	return nil
}

// ForwardOnlyPolicy allows moving ahead in step order, or cancelling, from a non-terminal state.
type ForwardOnlyPolicy struct{}

func (ForwardOnlyPolicy) Check(from, to OrderStatus) error {
	if !to.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, to)
	}
	if from == to {
		return nil
	}
	if from.Terminal() {
		return fmt.Errorf("%w: %s is final", ErrInvalidTransition, from)
	}
	if to == StatusCancelled || to.Step() > from.Step() {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}
