package store

import (
	"encoding/json"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// pushSubscription is the gorm model backing the "Push subscription
// table" of spec.md §3: "Mapping clientId -> opaque subscription
// descriptor; survives disconnect, pruned only when the push gateway
// rejects as gone." Grounded on the teacher's own *gorm.DB dependency in
// deps/deps.go, here given an actual sqlite-backed model since the
// teacher's own migrations weren't part of the retrieved pack.
type pushSubscription struct {
	ClientID string `gorm:"primaryKey"`
	Payload  string // raw JSON subscription descriptor
}

// Subscriptions wraps a *gorm.DB scoped to the push-subscription table.
type Subscriptions struct {
	db *gorm.DB
}

// OpenSubscriptions opens (creating if needed) the sqlite database at
// path and migrates the subscription table.
func OpenSubscriptions(path string) (*Subscriptions, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&pushSubscription{}); err != nil {
		return nil, err
	}
	return &Subscriptions{db: db}, nil
}

// Save upserts clientID's subscription descriptor (spec.md §6
// push_subscribe{subscription}).
func (s *Subscriptions) Save(clientID string, subscription json.RawMessage) error {
	rec := pushSubscription{ClientID: clientID, Payload: string(subscription)}
	return s.db.Save(&rec).Error
}

// PruneGone deletes clientID's subscription once the push gateway reports
// it as gone (spec.md §3: "pruned only when the push gateway rejects as
// gone").
func (s *Subscriptions) PruneGone(clientID string) error {
	return s.db.Delete(&pushSubscription{ClientID: clientID}).Error
}

// All returns every stored subscription for the push-notification
// fan-out path (out of scope for this spec's core, but the table exists
// so a collaborator can read it).
func (s *Subscriptions) All() ([]string, error) {
	var recs []pushSubscription
	if err := s.db.Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Payload)
	}
	return out, nil
}
