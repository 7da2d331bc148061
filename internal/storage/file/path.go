package file

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/aliskhannn/bg-remover/internal/model"
)

const suffixLen = 10

// Namer derives storage paths for order artifacts:
//
//	{kind}/{userId}/{fileName}_{suffix}.png
//
// By default the suffix is random per attempt. With deterministic naming it
// is derived from the order ID and kind, so repeated attempts overwrite.
type Namer struct {
	deterministic bool
}

// NewNamer creates a Namer.
func NewNamer(deterministic bool) Namer {
	return Namer{deterministic: deterministic}
}

// Path returns the object path for an artifact of the given kind.
func (n Namer) Path(kind model.ArtifactKind, userID, fileName, orderID string) string {
	return fmt.Sprintf("%s/%s/%s_%s.png", kind, userID, fileName, n.suffix(kind, orderID))
}

func (n Namer) suffix(kind model.ArtifactKind, orderID string) string {
	var id uuid.UUID
	if n.deterministic && orderID != "" {
		id = uuid.NewSHA1(uuid.NameSpaceURL, []byte(orderID+"/"+string(kind)))
	} else {
		id = uuid.New()
	}
	return strings.ReplaceAll(id.String(), "-", "")[:suffixLen]
}
