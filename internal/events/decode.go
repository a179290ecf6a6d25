package events

import (
	"encoding/json"
	"fmt"

	"speech-pii-redaction-service/internal/models"
)

// snsEnvelope wraps a notification delivered through SNS without raw delivery.
type snsEnvelope struct {
	Type    string `json:"Type"`
	Message string `json:"Message"`
}

// DecodeStorageEvent parses an S3-format notification, unwrapping an SNS
// envelope when present. Test events without records decode to an empty
// event.
func DecodeStorageEvent(data []byte) (models.StorageEvent, error) {
	var env snsEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return models.StorageEvent{}, fmt.Errorf("%w: storage event: %v", models.ErrValidation, err)
	}
	if env.Type == "Notification" && env.Message != "" {
		data = []byte(env.Message)
	}

	var ev models.StorageEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return models.StorageEvent{}, fmt.Errorf("%w: storage event: %v", models.ErrValidation, err)
	}
	return ev, nil
}
