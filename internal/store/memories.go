package store

import (
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/vthunder/engram/internal/engerr"
	"github.com/vthunder/engram/internal/logging"
)

// generateShortID derives a short, human-readable display id from a
// BLAKE3 hash of the full id, matching internal/graph/episodes.go's
// generateShortID.
func generateShortID(id string) string {
	hash := blake3.Sum256([]byte(id))
	return hex.EncodeToString(hash[:])[:8]
}

// NewID generates a memory id, prefixed the way
// memory-service/cmd/memory-service/main.go prefixes episode ids
// ("ep-...").
func NewID() string {
	return "mem-" + uuid.NewString()
}

// AddParams holds the fields needed to insert a new memory.
type AddParams struct {
	Content     string
	Type        MemoryType
	Importance  float64
	Contradicts *string
	Embedding   []float64
	Now         time.Time
}

// Add inserts a new memory at layer=working. Returns the assigned id.
// Fails with ErrInvalidArgument before any mutation if inputs are
// malformed, and with ErrConflict if Contradicts references a memory that
// does not exist.
func (s *Store) Add(p AddParams) (string, error) {
	if p.Importance < 0 || p.Importance > 1 {
		return "", fmt.Errorf("%w: importance must be in [0,1], got %f", engerr.ErrInvalidArgument, p.Importance)
	}
	if !ValidMemoryType(p.Type) {
		return "", fmt.Errorf("%w: unknown memory type %q", engerr.ErrInvalidArgument, p.Type)
	}
	if p.Embedding != nil {
		if err := s.checkEmbeddingDim(len(p.Embedding)); err != nil {
			return "", err
		}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("%w: %v", engerr.ErrUnavailable, err)
	}
	defer tx.Rollback()

	if p.Contradicts != nil {
		var exists int
		err := tx.QueryRow(`SELECT 1 FROM memories WHERE id = ?`, *p.Contradicts).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%w: contradicts references nonexistent memory %s", engerr.ErrConflict, *p.Contradicts)
		}
		if err != nil {
			return "", fmt.Errorf("%w: %v", engerr.ErrUnavailable, err)
		}
	}

	id := NewID()
	shortID := generateShortID(id)
	now := p.Now
	if now.IsZero() {
		now = time.Now()
	}

	embBytes, err := marshalEmbedding(p.Embedding)
	if err != nil {
		return "", fmt.Errorf("%w: %v", engerr.ErrInvalidArgument, err)
	}

	_, err = tx.Exec(`
		INSERT INTO memories (id, short_id, content, type, importance, layer,
			created_at, last_accessed_at, access_count, reinforcement, contradicts, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, 0, ?, ?)
	`, id, shortID, p.Content, string(p.Type), p.Importance, string(LayerWorking),
		now, now, p.Contradicts, embBytes)
	if err != nil {
		return "", fmt.Errorf("%w: %v", engerr.ErrUnavailable, err)
	}

	if p.Embedding != nil {
		if err := s.upsertVec(tx, id, p.Embedding); err != nil {
			// Vector indexing is best-effort: a failure here must not
			// abort the memory write.
			logging.Warn("store", "vector index for %s: %v", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("%w: %v", engerr.ErrUnavailable, err)
	}
	return id, nil
}

// Get retrieves a memory by id.
func (s *Store) Get(id string) (*Memory, error) {
	row := s.db.QueryRow(`
		SELECT id, short_id, content, type, importance, layer,
			created_at, last_accessed_at, access_count, reinforcement, contradicts, embedding
		FROM memories WHERE id = ?
	`, id)
	return scanMemory(row)
}

// Delete removes a memory, cascading to Hebbian links/counters and
// nullifying any contradicts reference that pointed at it.
func (s *Store) Delete(id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.db.Exec(`DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: %v", engerr.ErrUnavailable, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: memory %s", engerr.ErrNotFound, id)
	}
	s.deleteVec(id)
	return nil
}

// UpdateActivationFields persists the mutable access/reinforcement fields
// touched by recall, reward, and promotion.
func (s *Store) UpdateActivationFields(id string, lastAccessedAt time.Time, accessCount int, reinforcement float64) error {
	return s.UpdateActivationFieldsBatch([]ActivationUpdate{
		{ID: id, LastAccessedAt: lastAccessedAt, AccessCount: accessCount, Reinforcement: reinforcement},
	})
}

// ActivationUpdate is one memory's new access/reinforcement field values, for
// batching into a single UpdateActivationFieldsBatch transaction.
type ActivationUpdate struct {
	ID             string
	LastAccessedAt time.Time
	AccessCount    int
	Reinforcement  float64
}

// UpdateActivationFieldsBatch persists every update in updates atomically in
// one transaction: all rows commit together or, on any failure, none do.
// Matches store/hebbian.go's IncrementCoactivationPair/DecayLinks pattern for
// multi-row writes that must not leave partial state.
func (s *Store) UpdateActivationFieldsBatch(updates []ActivationUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: %v", engerr.ErrUnavailable, err)
	}
	defer tx.Rollback()

	for _, u := range updates {
		res, err := tx.Exec(`
			UPDATE memories SET last_accessed_at = ?, access_count = ?, reinforcement = ?
			WHERE id = ?
		`, u.LastAccessedAt, u.AccessCount, u.Reinforcement, u.ID)
		if err != nil {
			return fmt.Errorf("%w: %v", engerr.ErrUnavailable, err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return fmt.Errorf("%w: memory %s", engerr.ErrNotFound, u.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", engerr.ErrUnavailable, err)
	}
	return nil
}

// PromoteToCore transitions a memory's layer to core. This is one-way; a
// core memory never reverts to working.
func (s *Store) PromoteToCore(id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.db.Exec(`UPDATE memories SET layer = ? WHERE id = ?`, string(LayerCore), id)
	if err != nil {
		return fmt.Errorf("%w: %v", engerr.ErrUnavailable, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: memory %s", engerr.ErrNotFound, id)
	}
	return nil
}

// WorkingLayerMemories returns all memories currently in the working layer,
// used by the consolidator's sweep.
func (s *Store) WorkingLayerMemories() ([]*Memory, error) {
	rows, err := s.db.Query(`
		SELECT id, short_id, content, type, importance, layer,
			created_at, last_accessed_at, access_count, reinforcement, contradicts, embedding
		FROM memories WHERE layer = ?
	`, string(LayerWorking))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engerr.ErrUnavailable, err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

// CountByLayer returns the number of memories in each layer, used by Stats.
func (s *Store) CountByLayer() (working int, core int, err error) {
	rows, err := s.db.Query(`SELECT layer, COUNT(*) FROM memories GROUP BY layer`)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", engerr.ErrUnavailable, err)
	}
	defer rows.Close()
	for rows.Next() {
		var layer string
		var n int
		if err := rows.Scan(&layer, &n); err != nil {
			continue
		}
		switch Layer(layer) {
		case LayerWorking:
			working = n
		case LayerCore:
			core = n
		}
	}
	return working, core, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemory(row rowScanner) (*Memory, error) {
	var m Memory
	var typ, layer string
	var contradicts sql.NullString
	var embBytes []byte

	err := row.Scan(&m.ID, &m.ShortID, &m.Content, &typ, &m.Importance, &layer,
		&m.CreatedAt, &m.LastAccessedAt, &m.AccessCount, &m.Reinforcement, &contradicts, &embBytes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: memory", engerr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engerr.ErrUnavailable, err)
	}

	m.Type = MemoryType(typ)
	m.Layer = Layer(layer)
	if contradicts.Valid {
		v := contradicts.String
		m.Contradicts = &v
	}
	m.Embedding, err = unmarshalEmbedding(embBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: corrupt embedding: %v", engerr.ErrUnavailable, err)
	}
	return &m, nil
}

func scanMemories(rows *sql.Rows) ([]*Memory, error) {
	var out []*Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", engerr.ErrUnavailable, err)
	}
	return out, nil
}

func marshalEmbedding(e []float64) ([]byte, error) {
	if e == nil {
		return nil, nil
	}
	return json.Marshal(e)
}

func unmarshalEmbedding(b []byte) ([]float64, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var e []float64
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, err
	}
	return e, nil
}
