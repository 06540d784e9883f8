package index

import (
	"github.com/litetable/litetable-query/internal/litetable"
	"github.com/litetable/litetable-query/internal/store"
)

// Insert records that column of row id now holds next, replacing prev (an invalid prev means the
// cell was empty). The any_<column> index keeps whatever representation it already has; a new
// one is created ordered when ordered is set.
func Insert(s store.Store, id, column string, prev, next litetable.Value, ordered bool) error {
	if _, err := s.SAdd(AllKey, id); err != nil {
		return err
	}
	if prev.IsValid() && !prev.Equal(next) {
		if _, err := s.SRem(ValueKey(column, prev), id); err != nil {
			return err
		}
	}
	if _, err := s.SAdd(ValueKey(column, next), id); err != nil {
		return err
	}
	if prev.IsValid() && prev.Class() != next.Class() {
		if _, err := s.SRem(ClassKey(column, prev.Class()), id); err != nil {
			return err
		}
	}
	if _, err := s.SAdd(ClassKey(column, next.Class()), id); err != nil {
		return err
	}

	key := AnyKey(column)
	switch s.Type(key) {
	case store.TypeOrderedSet:
		_, err := s.ZAdd(key, id, next.Score())
		return err
	case store.TypeNone:
		if ordered {
			_, err := s.ZAdd(key, id, next.Score())
			return err
		}
	}
	_, err := s.SAdd(key, id)
	return err
}

// Remove records that column of row id, which held prev, is now empty. rowGone drops the row from
// the all index as well.
func Remove(s store.Store, id, column string, prev litetable.Value, rowGone bool) error {
	if _, err := s.SRem(ValueKey(column, prev), id); err != nil {
		return err
	}
	if _, err := s.SRem(ClassKey(column, prev.Class()), id); err != nil {
		return err
	}
	key := AnyKey(column)
	var err error
	if s.Type(key) == store.TypeOrderedSet {
		_, err = s.ZRem(key, id)
	} else {
		_, err = s.SRem(key, id)
	}
	if err != nil {
		return err
	}
	if rowGone {
		_, err = s.SRem(AllKey, id)
	}
	return err
}
