package idx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewAndParse(t *testing.T) {
	id := New()
	require.False(t, id.IsZero())

	parsed, err := Parse(" " + id.String() + " ")
	require.NoError(t, err)
	require.Equal(t, id, parsed)

	for _, bad := range []string{"", "   ", "not-a-ulid", "01ARZ3NDEKTSV4RRFFQ69G5FAVX"} {
		_, err := Parse(bad)
		require.ErrorIs(t, err, ErrInvalid, bad)
	}
}

func TestOrdering(t *testing.T) {
	a := New()
	b := New()
	require.Less(t, a.String(), b.String(), "monotonic ids sort in creation order")
}

func TestTimeExtraction(t *testing.T) {
	at := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	id := NewAt(at)
	require.True(t, id.Time().Equal(at))
	require.True(t, Zero.Time().IsZero())
}
