package eventbus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Типы событий импортёра
const (
	EventAssetCreated = "AssetCreated"
	EventAssetMerged  = "AssetMerged"
)

const assetEventVersion = 1

// AssetEvent - полезная нагрузка AssetCreated / AssetMerged
type AssetEvent struct {
	Identity  int64  `json:"identity"`
	Path      string `json:"path"`
	Source    string `json:"source"`
	Layers    int    `json:"layers"`
	Unchanged bool   `json:"unchanged"` // содержимое совпало с уже сохранённым
}

// NewAssetEnvelope упаковывает событие ассета в Envelope
func NewAssetEnvelope(eventType, source string, ev AssetEvent) (*Envelope, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации %s: %w", eventType, err)
	}
	return &Envelope{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Source:    source,
		EventType: eventType,
		Version:   assetEventVersion,
		Priority:  5,
		Payload:   payload,
		Metadata:  map[string]string{"path": ev.Path},
	}, nil
}

// DecodeAssetEvent разбирает полезную нагрузку события ассета
func DecodeAssetEvent(env *Envelope) (AssetEvent, error) {
	var ev AssetEvent
	if env.EventType != EventAssetCreated && env.EventType != EventAssetMerged {
		return ev, fmt.Errorf("событие %s не относится к ассетам", env.EventType)
	}
	if err := json.Unmarshal(env.Payload, &ev); err != nil {
		return ev, fmt.Errorf("ошибка разбора %s: %w", env.EventType, err)
	}
	return ev, nil
}
