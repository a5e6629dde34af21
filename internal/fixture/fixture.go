// Package fixture loads the seed thread every session starts from.
package fixture

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"

	"comment-thread/internal/models"
)

//go:embed data.json
var defaultData []byte

var (
	ErrNoCurrentUser = errors.New("fixture has no current user")
	ErrMissingID     = errors.New("fixture comment without id")
	ErrDuplicateID   = errors.New("fixture comment id is not unique")
)

// Fixture is the seed thread together with the user new comments are
// attributed to.
type Fixture struct {
	CurrentUser models.User       `json:"currentUser"`
	Comments    []*models.Comment `json:"comments"`
}

// Default returns the embedded fixture.
func Default() (*Fixture, error) {
	f, err := Load(bytes.NewReader(defaultData))
	if err != nil {
		return nil, errors.Wrap(err, "embedded fixture")
	}
	return f, nil
}

// LoadFile reads a fixture from path. An empty path selects the embedded one.
func LoadFile(path string) (*Fixture, error) {
	if path == "" {
		return Default()
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open fixture %s", path)
	}
	defer file.Close()

	f, err := Load(file)
	if err != nil {
		return nil, errors.Wrapf(err, "load fixture %s", path)
	}
	return f, nil
}

// Load decodes and validates a fixture.
func Load(r io.Reader) (*Fixture, error) {
	var f Fixture
	dec := json.NewDecoder(r)
	if err := dec.Decode(&f); err != nil {
		return nil, errors.Wrap(err, "decode fixture")
	}

	if err := f.validate(); err != nil {
		return nil, err
	}
	f.Comments = models.CloneForest(f.Comments)
	return &f, nil
}

// Forest returns a fresh deep copy of the seed comments.
func (f *Fixture) Forest() []*models.Comment {
	return models.CloneForest(f.Comments)
}

func (f *Fixture) validate() error {
	if strings.TrimSpace(f.CurrentUser.Username) == "" {
		return ErrNoCurrentUser
	}

	seen := make(map[models.CommentID]struct{})
	var err error
	models.Walk(f.Comments, func(c *models.Comment, _ int) bool {
		if c.ID == "" {
			err = errors.Wrapf(ErrMissingID, "comment by %s", c.User.Username)
			return false
		}
		if _, dup := seen[c.ID]; dup {
			err = errors.Wrapf(ErrDuplicateID, "id %s", c.ID)
			return false
		}
		seen[c.ID] = struct{}{}
		return true
	})
	return err
}
