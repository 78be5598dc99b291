package notifier

import (
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Whoagir/Afisha/internal/domain/notification"
)

const (
	serviceName    = "notification.v1.NotificationService"
	sendMethodName = "Send"
	sendMethod     = "/" + serviceName + "/" + sendMethodName
)

// SendResult は配送サービスの応答
type SendResult struct {
	Accepted  bool
	Permanent bool
	Message   string
}

func encodeMessage(msg notification.Message) (*structpb.Struct, error) {
	params := make(map[string]any, len(msg.TemplateParameters))
	for k, v := range msg.TemplateParameters {
		params[k] = v
	}
	req, err := structpb.NewStruct(map[string]any{
		"kind":                string(msg.Kind),
		"recipient_address":   msg.RecipientAddress,
		"event_id":            msg.EventID,
		"booking_id":          msg.BookingID,
		"template_parameters": params,
	})
	if err != nil {
		return nil, fmt.Errorf("リクエストの変換に失敗: %w", err)
	}
	return req, nil
}

func decodeMessage(req *structpb.Struct) notification.Message {
	f := req.GetFields()
	msg := notification.Message{
		Kind:             notification.Kind(f["kind"].GetStringValue()),
		RecipientAddress: f["recipient_address"].GetStringValue(),
		EventID:          f["event_id"].GetStringValue(),
		BookingID:        f["booking_id"].GetStringValue(),
	}
	if params := f["template_parameters"].GetStructValue(); params != nil {
		msg.TemplateParameters = make(map[string]string, len(params.GetFields()))
		for k, v := range params.GetFields() {
			msg.TemplateParameters[k] = v.GetStringValue()
		}
	}
	return msg
}

func encodeResult(res SendResult) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"accepted":  structpb.NewBoolValue(res.Accepted),
		"permanent": structpb.NewBoolValue(res.Permanent),
		"message":   structpb.NewStringValue(res.Message),
	}}
}

func decodeResult(resp *structpb.Struct) SendResult {
	f := resp.GetFields()
	return SendResult{
		Accepted:  f["accepted"].GetBoolValue(),
		Permanent: f["permanent"].GetBoolValue(),
		Message:   f["message"].GetStringValue(),
	}
}
