package diff

import (
	"reflect"

	"github.com/google/uuid"
	odiff "github.com/r3labs/diff/v3"
)

// GetCustomDiffer builds a differ that treats uuid.UUID values as leaves
// instead of descending into their bytes.
func GetCustomDiffer() *odiff.Differ {
	ret, err := odiff.NewDiffer(odiff.CustomValueDiffers(&UUIDComparer{}))
	if err != nil {
		panic(err)
	}
	return ret
}

type UUIDComparer struct{}

var (
	uuidType = reflect.TypeOf(uuid.UUID{})
)

// Match check is field match this custom type
func (c UUIDComparer) Match(a, b reflect.Value) bool {
	aok := a.Kind() == uuidType.Kind() && a.Type() == uuidType
	bok := b.Kind() == uuidType.Kind() && b.Type() == uuidType
	return (aok && bok) || (a.Kind() == reflect.Invalid && bok) || (b.Kind() == reflect.Invalid && aok)
}

// Diff check is diff or not
func (c UUIDComparer) Diff(_ odiff.DiffType, _ odiff.DiffFunc, cl *odiff.Changelog, path []string, a reflect.Value, b reflect.Value, _ interface{}) error {
	valA := reflect.Indirect(a)
	valB := reflect.Indirect(b)

	// A nil on either side is a plain update.
	if !valA.IsValid() || !valB.IsValid() {
		if valA.IsValid() != valB.IsValid() {
			cl.Add(odiff.UPDATE, path, a.Interface(), b.Interface())
		}
		return nil
	}

	u1 := valA.Interface().(uuid.UUID)
	u2 := valB.Interface().(uuid.UUID)

	if u1 != u2 {
		cl.Add(odiff.UPDATE, path, u1, u2)
	}
	return nil
}

// InsertParentDiffer do something with parent,
// uuid is leaf, so do not thing
func (c UUIDComparer) InsertParentDiffer(_ func(path []string, a reflect.Value, b reflect.Value, p interface{}) error) {
	// do not thing
}
