package cache

import (
	"testing"
	"time"

	"github.com/lifo4/edge-controller/internal/domain"
)

func TestSetGetFresh(t *testing.T) {
	m := NewManager[float64]()
	m.Set("price.spot", 0.18, time.Hour)

	v, err := m.GetFresh("price.spot")
	if err != nil {
		t.Fatalf("GetFresh() error: %v", err)
	}
	if v != 0.18 {
		t.Errorf("GetFresh() = %v, want 0.18", v)
	}
}

func TestGetFreshMissReturnsErrCacheMiss(t *testing.T) {
	m := NewManager[float64]()
	if _, err := m.GetFresh("missing"); err != domain.ErrCacheMiss {
		t.Errorf("GetFresh() error = %v, want ErrCacheMiss", err)
	}
}

func TestStaleValueStillReturnedByGet(t *testing.T) {
	m := NewManager[int]()
	m.entries["k"] = domain.CacheEntry[int]{Value: 7, StoredAt: time.Now().Add(-time.Hour), Expiry: time.Minute}

	v, present, fresh := m.Get("k")
	if !present {
		t.Fatalf("Get() present = false, want true")
	}
	if fresh {
		t.Errorf("Get() fresh = true, want false")
	}
	if v != 7 {
		t.Errorf("Get() value = %d, want 7", v)
	}

	if _, err := m.GetFresh("k"); err != domain.ErrCacheMiss {
		t.Errorf("GetFresh() on stale entry error = %v, want ErrCacheMiss", err)
	}
}

func TestZeroTTLNeverExpires(t *testing.T) {
	m := NewManager[string]()
	m.Set("sticky", "config-v3", 0)

	v, err := m.GetFresh("sticky")
	if err != nil {
		t.Fatalf("GetFresh() error: %v", err)
	}
	if v != "config-v3" {
		t.Errorf("GetFresh() = %q, want %q", v, "config-v3")
	}
}
