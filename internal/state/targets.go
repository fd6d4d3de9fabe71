package state

import (
	"time"

	"github.com/dokzlo13/plantboxd/internal/model"
)

const targetsKind = "targets"

type savedTargets struct {
	TargetTempC       float64   `json:"target_temp_c"`
	TargetHumidityPct *float64  `json:"target_humidity_pct,omitempty"`
	SavedAt           time.Time `json:"saved_at"`
}

// TargetsStore remembers the last backend setpoints per device so a reboot
// without network resumes from them instead of the built-in defaults.
// The watering trigger is never persisted.
type TargetsStore struct {
	typed *TypedStore[savedTargets]
}

// NewTargetsStore creates a targets store over store.
func NewTargetsStore(store *Store) *TargetsStore {
	return &TargetsStore{typed: NewTypedStore[savedTargets](store, targetsKind)}
}

// Load returns the saved targets for deviceID. ok is false when nothing was saved.
func (s *TargetsStore) Load(deviceID string) (targets model.SystemTargets, ok bool, err error) {
	saved, version, err := s.typed.Get(deviceID)
	if err != nil || version == 0 {
		return model.DefaultTargets(), false, err
	}
	targets = model.SystemTargets{
		TargetTempC:       saved.TargetTempC,
		TargetHumidityPct: saved.TargetHumidityPct,
	}
	return targets, true, nil
}

// Save stores targets for deviceID.
func (s *TargetsStore) Save(deviceID string, targets model.SystemTargets, at time.Time) error {
	return s.typed.Set(deviceID, savedTargets{
		TargetTempC:       targets.TargetTempC,
		TargetHumidityPct: targets.TargetHumidityPct,
		SavedAt:           at.UTC(),
	})
}

// Reset forgets saved targets for every device.
func (s *TargetsStore) Reset() error {
	return s.typed.Clear()
}
