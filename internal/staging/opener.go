package staging

import (
	"context"

	"vidingest/internal/hasher"
	"vidingest/internal/media"
	"vidingest/internal/remote"
)

// SourceOpener opens the source file of a record for reading.
type SourceOpener interface {
	Open(ctx context.Context, rec media.VideoRecord) (hasher.File, error)
}

// LocalOpener reads sources from this machine's filesystem.
type LocalOpener struct{}

func (LocalOpener) Open(_ context.Context, rec media.VideoRecord) (hasher.File, error) {
	return hasher.OpenLocal(rec.Path)
}

// HostOpener reads records of remote hosts over SFTP and everything else
// locally.
type HostOpener struct {
	Remote *remote.Pool
}

func (o HostOpener) Open(ctx context.Context, rec media.VideoRecord) (hasher.File, error) {
	if o.Remote.Has(rec.Host) {
		return o.Remote.Open(ctx, rec.Host, rec.Path)
	}
	return hasher.OpenLocal(rec.Path)
}
