package aggregate_test

import (
	"path/filepath"
	"testing"

	"vidingest/internal/aggregate"
	"vidingest/internal/media"
)

func TestSplit(t *testing.T) {
	root := filepath.Join(t.TempDir(), "managed")
	inside := rec("workstation", filepath.Join(root, "mouse1", "2024-02-02", "a.mp4"), "a")
	outside := rec("workstation", "/home/lab/b.mp4", "b")
	remoteLookalike := rec("rig-a", filepath.Join(root, "c.mp4"), "c")
	registered := rec("rig-a", "/srv/d.mp4", "d")
	dupInside := rec("workstation", filepath.Join(root, "e.mp4"), "e")
	canonicalElsewhere := rec("rig-a", "/srv/e.mp4", "e")

	entries := []media.UniqueVideoEntry{
		{Record: inside},
		{Record: outside},
		{Record: remoteLookalike},
		{Record: registered},
		{Record: canonicalElsewhere, Duplicates: []media.VideoRecord{dupInside}},
	}
	preview := aggregate.Split(entries, aggregate.SplitOptions{
		ManagedRoot: root,
		LocalHosts:  []string{"workstation"},
		Registered:  func(hash string) bool { return hash == registered.SampleHash },
	})

	if len(preview.InManaged) != 3 || len(preview.NeedsStaging) != 2 {
		t.Fatalf("in managed=%d needs staging=%d", len(preview.InManaged), len(preview.NeedsStaging))
	}
	promoted := preview.InManaged[2]
	if promoted.Record != dupInside || len(promoted.Duplicates) != 1 || promoted.Duplicates[0] != canonicalElsewhere {
		t.Fatalf("managed copy should become canonical: %+v", promoted)
	}
	if preview.NeedsStaging[1].Record != remoteLookalike {
		t.Fatalf("remote path under the same prefix must still be staged: %+v", preview.NeedsStaging)
	}
}

func TestSplitWithoutManagedRoot(t *testing.T) {
	preview := aggregate.Split([]media.UniqueVideoEntry{{Record: rec("workstation", "/x.mp4", "x")}}, aggregate.SplitOptions{})
	if len(preview.NeedsStaging) != 1 || len(preview.InManaged) != 0 {
		t.Fatalf("preview = %+v", preview)
	}
}
