package notification

import "context"

// Message は配送サービスへの呼び出し内容
type Message struct {
	Kind               Kind
	RecipientAddress   string
	EventID            string
	BookingID          string
	TemplateParameters map[string]string
}

// Transport はリモートの通知配送サービス。
// 受理されなかった場合やトランスポートエラーは ErrTransientDelivery、
// 宛先不正など再試行しても成功しないものは ErrPermanentDelivery でラップして返す
type Transport interface {
	Send(ctx context.Context, msg Message) error
}
