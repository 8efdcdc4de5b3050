package presentation

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exhibit-live/exhibit/internal/domain/model"
)

func TestNewPresentationHasDefaultLimiter(t *testing.T) {
	pres := New("talk-1", "speaker", "Go in Production", false, nil)
	assert.Equal(t, []string{DefaultLimiterName}, pres.Ratelimiter().Names())
}

func TestSlideSettingsStartNil(t *testing.T) {
	pres := New("talk-1", "speaker", "Go in Production", false, nil)
	assert.Nil(t, pres.SlideSettings())

	pres.SetSlideSettings(model.SlideSettings{Message: "hello", Emojis: []string{"👋"}})
	got := pres.SlideSettings()
	require.NotNil(t, got)
	assert.Equal(t, "hello", got.Message)
}

func TestSlideSettingsReturnsCopy(t *testing.T) {
	pres := New("talk-1", "speaker", "Go in Production", false, nil)
	pres.SetSlideSettings(model.SlideSettings{Message: "hello"})

	snapshot := pres.SlideSettings()
	snapshot.Message = "mutated"
	assert.Equal(t, "hello", pres.SlideSettings().Message)
}

func TestStoreRegisterRejectsDuplicateID(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.Register(New("talk-1", "speaker", "First", false, nil)))

	err := store.Register(New("talk-1", "someone", "Second", false, nil))
	require.ErrorIs(t, err, ErrAlreadyExists)

	pres, ok := store.Get("talk-1")
	require.True(t, ok)
	assert.Equal(t, "First", pres.Title())
}

func TestStoreConcurrentRegisterSameID(t *testing.T) {
	store := NewStore()

	const n = 32
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = store.Register(New("talk-1", "speaker", "Race", false, nil))
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		}
	}
	assert.Equal(t, 1, winners)
	assert.Equal(t, 1, store.Len())
}
