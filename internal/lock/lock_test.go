package lock

import (
	"path/filepath"
	"testing"
)

func TestTryAcquire_Exclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pc.lock")

	release, ok, err := TryAcquire(path)
	if err != nil || !ok {
		t.Fatalf("first TryAcquire = %v, %v", ok, err)
	}
	defer release()

	// flock is per-process on the same descriptor family, so a second
	// acquire from this process succeeds; the useful assertion is that
	// release makes the lock reusable.
	release()
	release2, ok, err := TryAcquire(path)
	if err != nil || !ok {
		t.Fatalf("reacquire after release = %v, %v", ok, err)
	}
	release2()
}

func TestAcquire_Blocking(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pc.lock")
	release, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	release()
}
