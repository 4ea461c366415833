package distribution

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRewards_Distribution_ParseAddress(t *testing.T) {
	t.Parallel()

	t.Run("normalizes checksummed input", func(t *testing.T) {
		t.Parallel()
		a, err := ParseAddress("0x2A2Cd905141F1cDf3620dB6A1eD0Abc4F7E8635C")
		require.NoError(t, err)
		require.Equal(t, Address("0x2a2cd905141f1cdf3620db6a1ed0abc4f7e8635c"), a)
	})

	t.Run("accepts missing prefix and whitespace", func(t *testing.T) {
		t.Parallel()
		a, err := ParseAddress("  5cef3aed38eb937f3dc0864307ac6c9a9694abfa ")
		require.NoError(t, err)
		require.Equal(t, Address("0x5cef3aed38eb937f3dc0864307ac6c9a9694abfa"), a)
	})

	t.Run("rejects malformed input", func(t *testing.T) {
		t.Parallel()
		for _, s := range []string{"", "0x", "0x1234", "not-an-address", "0xZZ2cd905141f1cdf3620db6a1ed0abc4f7e8635c"} {
			_, err := ParseAddress(s)
			require.Error(t, err, s)
		}
	})
}

func TestRewards_Distribution_AddressOrdering(t *testing.T) {
	t.Parallel()

	m := map[Address]int{"0xcc": 1, "0xaa": 2, "0xbb": 3}
	require.Equal(t, []Address{"0xaa", "0xbb", "0xcc"}, sortedKeys(m))
	require.Equal(t, NormalizeAddress("0xAbC"), NormalizeAddress(" 0xabc"))
}
