package htmlstore

import (
	"os"
	"testing"
)

func TestPutIsContentAddressed(t *testing.T) {
	t.Parallel()

	store := New(t.TempDir())

	digest1, path1, err := store.Put("<html>same</html>")
	if err != nil {
		t.Fatalf("first put: %v", err)
	}
	digest2, path2, err := store.Put("<html>same</html>")
	if err != nil {
		t.Fatalf("second put: %v", err)
	}

	if digest1 != digest2 || path1 != path2 {
		t.Fatalf("identical content produced different refs: %s vs %s", path1, path2)
	}

	raw, err := os.ReadFile(path1)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(raw) != "<html>same</html>" {
		t.Fatalf("unexpected content: %q", raw)
	}

	digest3, _, err := store.Put("<html>different</html>")
	if err != nil {
		t.Fatalf("third put: %v", err)
	}
	if digest3 == digest1 {
		t.Fatal("different content must produce a different digest")
	}
}
