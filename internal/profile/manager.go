package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kalambet/quill/internal/storage"
	"github.com/kalambet/quill/internal/style"
)

// ProfileKey is the key/value slot holding the serialized style profile.
const ProfileKey = "style_profile"

// ErrUnsupportedFormat is returned by Export for unknown formats.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// ProfileStore defines the storage operations the Manager needs.
// Implemented by storage.Store.
type ProfileStore interface {
	SetProfileKey(key, value string) error
	GetProfileKey(key string) (string, error)
}

// TrainingStore is a ProfileStore that can save a trained profile and stamp
// the samples it was trained on atomically. Implemented by storage.Store.
type TrainingStore interface {
	ProfileStore
	CommitTraining(key, value string, ids []string, at time.Time) error
}

// ErrCorruptProfile is returned by writes that would build on a stored
// profile that cannot be decoded. Reset or Import replace it.
var ErrCorruptProfile = errors.New("stored style profile is unreadable; reset or import a profile")

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Manager owns the persisted style profile. Reads are served from a
// TTL cache; every write goes through the store and refreshes the cache.
type Manager struct {
	store ProfileStore
	clock Clock
	ttl   time.Duration

	mu       sync.RWMutex
	cached   *style.Profile
	cachedAt time.Time
}

// NewManager creates a Manager with a 60-second cache TTL.
func NewManager(store ProfileStore) *Manager {
	return &Manager{
		store: store,
		clock: realClock{},
		ttl:   60 * time.Second,
	}
}

// NewManagerWithClock creates a Manager with a custom clock (for testing).
func NewManagerWithClock(store ProfileStore, clock Clock, ttl time.Duration) *Manager {
	return &Manager{
		store: store,
		clock: clock,
		ttl:   ttl,
	}
}

// GetProfile returns the current profile. On first use a default profile is
// created and persisted so that its creation time is stable.
func (m *Manager) GetProfile() (style.Profile, error) {
	// Fast path: read lock for cache hit.
	m.mu.RLock()
	if m.cached != nil && m.clock.Now().Before(m.cachedAt.Add(m.ttl)) {
		p := m.cached.Clone()
		m.mu.RUnlock()
		return p, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock.
	if m.cached != nil && m.clock.Now().Before(m.cachedAt.Add(m.ttl)) {
		return m.cached.Clone(), nil
	}

	p, err := m.loadLocked()
	if errors.Is(err, ErrCorruptProfile) {
		slog.Warn("stored style profile is malformed, serving defaults", "error", err)
		return style.DefaultProfile(m.clock.Now()), nil
	}
	if err != nil {
		return style.Profile{}, err
	}
	m.remember(p)
	return p.Clone(), nil
}

// StylePrompt renders the current profile as a generation instruction block.
func (m *Manager) StylePrompt() (string, error) {
	p, err := m.GetProfile()
	if err != nil {
		return "", fmt.Errorf("getting profile for prompt: %w", err)
	}
	return style.Synthesize(p), nil
}

// Train analyzes texts and folds the result into the stored profile.
func (m *Manager) Train(texts []string) (style.Profile, style.Analysis, error) {
	var a style.Analysis
	p, err := m.update(func(p *style.Profile, now time.Time) error {
		a = style.Analyze(texts, now)
		*p = style.Merge(p, a, now)
		return nil
	})
	return p, a, err
}

// TrainSamples is Train for stored samples. The merged profile and the
// samples' trained_at stamps are committed together, so a failed write
// leaves the samples untrained and the profile unchanged.
func (m *Manager) TrainSamples(texts, ids []string) (style.Profile, style.Analysis, error) {
	ts, ok := m.store.(TrainingStore)
	if !ok {
		return style.Profile{}, style.Analysis{}, errors.New("profile store cannot record trained samples")
	}
	var a style.Analysis
	merge := func(p *style.Profile, now time.Time) error {
		a = style.Analyze(texts, now)
		*p = style.Merge(p, a, now)
		return nil
	}
	commit := func(p style.Profile) error {
		return m.persistLocked(p, func(data string) error {
			return ts.CommitTraining(ProfileKey, data, ids, p.UpdatedAt)
		})
	}
	p, err := m.updateWith(merge, commit)
	return p, a, err
}

// Reset replaces the stored profile with a fresh default one.
func (m *Manager) Reset() (style.Profile, error) {
	return m.replace(style.DefaultProfile(m.clock.Now()))
}

// Import validates data as profile JSON and replaces the stored profile.
// Errors wrap style.ErrInvalidProfile when the data is rejected.
func (m *Manager) Import(data []byte) (style.Profile, error) {
	p, err := style.Decode(data, m.clock.Now())
	if err != nil {
		return style.Profile{}, err
	}
	return m.replace(p)
}

// Export serializes the current profile as "json" (indented) or "yaml".
func (m *Manager) Export(format string) ([]byte, error) {
	p, err := m.GetProfile()
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(format) {
	case "", FormatJSON:
		return json.MarshalIndent(p, "", "  ")
	case FormatYAML, "yml":
		return yaml.Marshal(p)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// UpdateOverrides applies a partial update to the user's pins.
func (m *Manager) UpdateOverrides(patch OverridesPatch) (style.Profile, error) {
	return m.update(func(p *style.Profile, now time.Time) error {
		o := &p.UserOverrides
		if patch.Tone != nil {
			v, err := style.ParseOverride[style.Tone](*patch.Tone)
			if err != nil {
				return err
			}
			o.Tone = v
		}
		if patch.Structure != nil {
			v, err := style.ParseOverride[style.Structure](*patch.Structure)
			if err != nil {
				return err
			}
			o.Structure = v
		}
		if patch.Verbosity != nil {
			v, err := style.ParseOverride[style.Verbosity](*patch.Verbosity)
			if err != nil {
				return err
			}
			o.Verbosity = v
		}
		if patch.PreferredPhrases != nil {
			o.PreferredPhrases = cleanPhrases(*patch.PreferredPhrases)
		}
		if patch.AvoidedPhrases != nil {
			o.AvoidedPhrases = cleanPhrases(*patch.AvoidedPhrases)
		}
		if patch.CustomInstructions != nil {
			o.CustomInstructions = strings.TrimSpace(*patch.CustomInstructions)
		}
		p.UpdatedAt = now
		return nil
	})
}

// UpdateSettings applies a partial update to the profile's flags.
func (m *Manager) UpdateSettings(patch SettingsPatch) (style.Profile, error) {
	return m.update(func(p *style.Profile, now time.Time) error {
		if patch.AutoTrain != nil {
			p.Settings.AutoTrain = *patch.AutoTrain
		}
		if patch.IncludeNotesOnTrain != nil {
			p.Settings.IncludeNotesOnTrain = *patch.IncludeNotesOnTrain
		}
		if patch.PrivacyMode != nil {
			p.Settings.PrivacyMode = *patch.PrivacyMode
		}
		p.UpdatedAt = now
		return nil
	})
}

// update runs fn against the freshly loaded profile under the write lock
// and persists the result. The stored profile is untouched if fn fails.
func (m *Manager) update(fn func(p *style.Profile, now time.Time) error) (style.Profile, error) {
	return m.updateWith(fn, m.saveLocked)
}

func (m *Manager) updateWith(fn func(p *style.Profile, now time.Time) error, save func(style.Profile) error) (style.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.loadLocked()
	if err != nil {
		return style.Profile{}, err
	}
	if err := fn(&p, m.clock.Now().UTC()); err != nil {
		return style.Profile{}, err
	}
	if err := save(p); err != nil {
		return style.Profile{}, err
	}
	return p.Clone(), nil
}

func (m *Manager) replace(p style.Profile) (style.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.saveLocked(p); err != nil {
		return style.Profile{}, err
	}
	return p.Clone(), nil
}

// loadLocked reads the profile from the store. A missing profile is created.
// A corrupt one yields ErrCorruptProfile and its bytes stay in place until
// Reset or Import overwrites them.
func (m *Manager) loadLocked() (style.Profile, error) {
	now := m.clock.Now()

	raw, err := m.store.GetProfileKey(ProfileKey)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && raw == "") {
		p := style.DefaultProfile(now)
		if err := m.saveLocked(p); err != nil {
			return style.Profile{}, err
		}
		return p, nil
	}
	if err != nil {
		return style.Profile{}, fmt.Errorf("loading style profile: %w", err)
	}

	p, err := style.Decode([]byte(raw), now)
	if err != nil {
		return style.Profile{}, fmt.Errorf("%w: %w", ErrCorruptProfile, err)
	}
	return p, nil
}

func (m *Manager) saveLocked(p style.Profile) error {
	return m.persistLocked(p, func(data string) error {
		return m.store.SetProfileKey(ProfileKey, data)
	})
}

// persistLocked marshals p, hands it to write and caches p only once the
// write succeeded.
func (m *Manager) persistLocked(p style.Profile, write func(data string) error) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshalling style profile: %w", err)
	}
	if err := write(string(data)); err != nil {
		return fmt.Errorf("saving style profile: %w", err)
	}
	m.remember(p)
	return nil
}

func (m *Manager) remember(p style.Profile) {
	cp := p.Clone()
	m.cached = &cp
	m.cachedAt = m.clock.Now()
}

func cleanPhrases(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
