package library

import (
	"context"
	"errors"
)

// Installation identifies a playable title produced by the external
// game-library scanner. Records are read-only from the launcher's side.
type Installation struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Executable string `json:"executable"`
	InstallDir string `json:"install_dir"`
}

var ErrNotFound = errors.New("game not found")

// Library is the collaborator contract for resolving launch requests
// against installed games. Implementations must be safe for concurrent use.
type Library interface {
	ByID(ctx context.Context, id string) (Installation, error)
	ByExecutable(ctx context.Context, path string) (Installation, error)
	List(ctx context.Context) ([]Installation, error)
}
