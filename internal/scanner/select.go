package scanner

import (
	"log/slog"

	"vidingest/internal/faults"
	"vidingest/internal/hasher"
	"vidingest/internal/media"
	"vidingest/internal/recordtime"
	"vidingest/internal/remote"
)

// Deps carries what a Source needs beyond its target.
type Deps struct {
	Hasher      *hasher.Hasher
	Resolver    *recordtime.Resolver
	Dialer      remote.Dialer
	HashWorkers int
	FullHash    bool
	Progress    func(media.VideoRecord)
	Logger      *slog.Logger
}

// SourceFor returns the Source variant for the target's kind.
func SourceFor(target ScanTarget, deps Deps) (Source, error) {
	switch target.Kind {
	case KindLocal, "":
		return &LocalSource{
			Target:   target,
			Hasher:   deps.Hasher,
			Resolver: deps.Resolver,
			Workers:  deps.HashWorkers,
			FullHash: deps.FullHash,
			Progress: deps.Progress,
			Logger:   deps.Logger,
		}, nil
	case KindSSH, KindSSHWSL:
		var sampleBytes int64
		if deps.Hasher != nil {
			sampleBytes = deps.Hasher.SampleBytes()
		}
		return &RemoteSource{
			Target:      target,
			Dialer:      deps.Dialer,
			HashWorkers: deps.HashWorkers,
			FullHash:    deps.FullHash,
			SampleBytes: sampleBytes,
			Progress:    deps.Progress,
			Logger:      deps.Logger,
		}, nil
	default:
		return nil, faults.Configf("targets.kind", "target %s has unsupported kind %q", target.Name, target.Kind)
	}
}
