package crypto

import (
	"bytes"
	"testing"
)

func FuzzDeriveFieldPad(f *testing.F) {
	f.Add([]byte("shared-secret-1"), 10)
	f.Add([]byte("shared-secret-2"), 1)
	f.Add([]byte("shared-secret-3"), 50)

	field, err := NewField(P61)
	if err != nil {
		f.Fatal(err)
	}

	f.Fuzz(func(t *testing.T, secret []byte, nEls int) {
		if len(secret) == 0 || nEls <= 0 || nEls > 1000 {
			t.Skip()
		}

		result := DeriveFieldPad(SharedKey(secret), field, nEls)

		if len(result) != nEls {
			t.Errorf("output length mismatch: got %d, want %d", len(result), nEls)
		}

		for i, el := range result {
			if !field.Contains(el) {
				t.Errorf("element %d out of range: %v", i, el)
			}
		}

		result2 := DeriveFieldPad(SharedKey(secret), field, nEls)
		for i := range result {
			if result[i].Cmp(result2[i]) != 0 {
				t.Errorf("non-deterministic: element %d differs on second call", i)
			}
		}

		// A longer pad extends the shorter one.
		longer := DeriveFieldPad(SharedKey(secret), field, nEls+1)
		for i := range result {
			if result[i].Cmp(longer[i]) != 0 {
				t.Errorf("prefix mismatch at element %d", i)
			}
		}
	})
}

func FuzzDeriveXorPad(f *testing.F) {
	f.Add([]byte("shared-secret-1"), 100)
	f.Add([]byte("shared-secret-2"), 1)
	f.Add([]byte("shared-secret-3"), 64)
	f.Add([]byte("shared-secret-4"), 17)

	f.Fuzz(func(t *testing.T, secret []byte, nBytes int) {
		if len(secret) == 0 || nBytes < 0 || nBytes > 10000 {
			t.Skip()
		}

		result := DeriveXorPad(SharedKey(secret), nBytes)
		if len(result) != nBytes {
			t.Errorf("output length mismatch: got %d, want %d", len(result), nBytes)
		}

		result2 := DeriveXorPad(SharedKey(secret), nBytes)
		if !bytes.Equal(result, result2) {
			t.Error("non-deterministic output")
		}

		data := bytes.Repeat([]byte{0xab}, nBytes)
		XorInplace(data, result)
		XorInplace(data, result2)
		if !bytes.Equal(data, bytes.Repeat([]byte{0xab}, nBytes)) {
			t.Error("double padding did not cancel")
		}

		if nBytes >= 16 {
			other := DeriveXorPad(SharedKey(append([]byte{1}, secret...)), nBytes)
			if bytes.Equal(result, other) {
				t.Error("different secrets produced identical pads")
			}
		}
	})
}
