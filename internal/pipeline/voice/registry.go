package voice

import (
	"hash/fnv"
	"sync"

	"github.com/yungbote/novelvideo/internal/pipeline/domain"
)

// Registry assigns and remembers one voice ID per character name for
// the lifetime of a single job. Assignment is idempotent: calling
// Assign twice for the same speaker returns the same voice without
// re-hashing against a changed candidate set, so a character's voice
// never drifts mid-job even if other characters are assigned around it.
type Registry struct {
	catalog *Catalog
	mu      sync.Mutex
	assigned map[string]string
}

func NewRegistry(catalog *Catalog) *Registry {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Registry{catalog: catalog, assigned: make(map[string]string)}
}

// Assign returns the voice ID for speaker, appearing as gender/ageStage,
// assigning one on first use via a stable FNV-1a hash of the speaker
// name modulo the matching candidate set.
func (r *Registry) Assign(speaker string, gender domain.GenderKind, ageStage domain.AgeStage) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v, ok := r.assigned[speaker]; ok {
		return v
	}

	candidates := r.catalog.candidates(gender, ageStage)
	if len(candidates) == 0 {
		// Leave speaker unassigned so Lookup reports ok=false and the
		// caller's default-voice fallback fires instead of caching a
		// permanent empty voice ID.
		return ""
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(speaker))
	idx := int(h.Sum32()) % len(candidates)
	if idx < 0 {
		idx += len(candidates)
	}
	voice := candidates[idx].ID
	r.assigned[speaker] = voice
	return voice
}

// AssignNarrator returns a fixed narrator voice, bypassing per-speaker
// hashing since there is exactly one narrator per job.
func (r *Registry) AssignNarrator(narratorVoiceID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assigned["__narrator__"] = narratorVoiceID
	return narratorVoiceID
}

// Lookup returns the voice already assigned to speaker, if any.
func (r *Registry) Lookup(speaker string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.assigned[speaker]
	return v, ok
}
