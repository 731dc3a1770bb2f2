package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vthunder/engram/internal/engerr"
)

// Hebbian links are persisted rows, not an in-process dict of counters:
// coactivation_count tracks co-recall frequency from the first observed
// pair, strength stays NULL until a link actually forms at the threshold
// crossing, matching _examples/original_source/tests/test_hebbian.py's
// test_link_forms_at_threshold.

// IncrementCoactivationPair bumps the shared co-activation counter between
// aID and bID, writing both directions so queries from either endpoint see
// the same count. Returns the resulting count.
func (s *Store) IncrementCoactivationPair(aID, bID string) (int, error) {
	if aID == bID {
		return 0, fmt.Errorf("%w: cannot coactivate a memory with itself", engerr.ErrInvalidArgument)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", engerr.ErrUnavailable, err)
	}
	defer tx.Rollback()

	for _, pair := range [][2]string{{aID, bID}, {bID, aID}} {
		_, err := tx.Exec(`
			INSERT INTO hebbian_links (source_id, target_id, coactivation_count, created_at)
			VALUES (?, ?, 1, ?)
			ON CONFLICT(source_id, target_id) DO UPDATE SET
				coactivation_count = coactivation_count + 1
		`, pair[0], pair[1], time.Now())
		if err != nil {
			return 0, fmt.Errorf("%w: %v", engerr.ErrUnavailable, err)
		}
	}

	var count int
	if err := tx.QueryRow(`SELECT coactivation_count FROM hebbian_links WHERE source_id = ? AND target_id = ?`, aID, bID).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: %v", engerr.ErrUnavailable, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: %v", engerr.ErrUnavailable, err)
	}
	return count, nil
}

// GetLink returns the link row from sourceID to targetID, or
// engerr.ErrNotFound if no coactivation has ever been recorded for the pair.
func (s *Store) GetLink(sourceID, targetID string) (*Link, error) {
	row := s.db.QueryRow(`
		SELECT source_id, target_id, strength, coactivation_count, created_at
		FROM hebbian_links WHERE source_id = ? AND target_id = ?
	`, sourceID, targetID)
	return scanLink(row)
}

// CreateLinkPair sets an initial strength on both directions of a pair,
// forming the link. Idempotent: calling it again is a strength update, not
// a duplicate row (test_maybe_create_link_idempotent).
func (s *Store) CreateLinkPair(aID, bID string, strength float64) error {
	return s.setStrengthPair(aID, bID, strength)
}

// UpdateLinkStrength overwrites the strength of both directions of a pair
// that has already formed a link.
func (s *Store) UpdateLinkStrength(aID, bID string, strength float64) error {
	return s.setStrengthPair(aID, bID, strength)
}

func (s *Store) setStrengthPair(aID, bID string, strength float64) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: %v", engerr.ErrUnavailable, err)
	}
	defer tx.Rollback()

	for _, pair := range [][2]string{{aID, bID}, {bID, aID}} {
		res, err := tx.Exec(`UPDATE hebbian_links SET strength = ? WHERE source_id = ? AND target_id = ?`,
			strength, pair[0], pair[1])
		if err != nil {
			return fmt.Errorf("%w: %v", engerr.ErrUnavailable, err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return fmt.Errorf("%w: no coactivation recorded for %s/%s", engerr.ErrNotFound, pair[0], pair[1])
		}
	}
	return tx.Commit()
}

// Neighbors returns the formed (strength IS NOT NULL) links out of id with
// strength at or above floor, descending by strength, matching
// get_hebbian_neighbors.
func (s *Store) Neighbors(id string, floor float64) ([]Neighbor, error) {
	rows, err := s.db.Query(`
		SELECT target_id, strength FROM hebbian_links
		WHERE source_id = ? AND strength IS NOT NULL AND strength >= ?
		ORDER BY strength DESC
	`, id, floor)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engerr.ErrUnavailable, err)
	}
	defer rows.Close()

	var out []Neighbor
	for rows.Next() {
		var n Neighbor
		if err := rows.Scan(&n.ID, &n.Strength); err != nil {
			continue
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// AllFormedLinks returns every link that has crossed the threshold and
// formed (strength IS NOT NULL), one row per direction; backs
// hebbian.AllLinks and Engine.HebbianLinks("").
func (s *Store) AllFormedLinks() ([]Link, error) {
	rows, err := s.db.Query(`
		SELECT source_id, target_id, strength, coactivation_count, created_at
		FROM hebbian_links WHERE strength IS NOT NULL
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engerr.ErrUnavailable, err)
	}
	defer rows.Close()

	var out []Link
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			continue
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

// DecayLinks multiplies every formed link's strength by factor, then prunes
// any link that falls below floor, matching
// test_consolidation_decays_hebbian_links. Returns the number of links
// pruned.
func (s *Store) DecayLinks(factor, floor float64) (pruned int, err error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", engerr.ErrUnavailable, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE hebbian_links SET strength = strength * ? WHERE strength IS NOT NULL`, factor); err != nil {
		return 0, fmt.Errorf("%w: %v", engerr.ErrUnavailable, err)
	}

	res, err := tx.Exec(`DELETE FROM hebbian_links WHERE strength IS NOT NULL AND strength < ?`, floor)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", engerr.ErrUnavailable, err)
	}
	n, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: %v", engerr.ErrUnavailable, err)
	}
	return int(n), nil
}

// CoactivationStats reports the total number of formed links and their mean
// strength, surfaced through hebbian.Stats.
func (s *Store) CoactivationStats() (formedLinks int, avgStrength float64, err error) {
	row := s.db.QueryRow(`SELECT COUNT(*), COALESCE(AVG(strength), 0) FROM hebbian_links WHERE strength IS NOT NULL`)
	if err := row.Scan(&formedLinks, &avgStrength); err != nil {
		return 0, 0, fmt.Errorf("%w: %v", engerr.ErrUnavailable, err)
	}
	return formedLinks, avgStrength, nil
}

func scanLink(row rowScanner) (*Link, error) {
	var l Link
	var strength sql.NullFloat64
	err := row.Scan(&l.SourceID, &l.TargetID, &strength, &l.CoactivationCount, &l.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: hebbian link", engerr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engerr.ErrUnavailable, err)
	}
	if strength.Valid {
		l.Strength = strength.Float64
	}
	return &l, nil
}
