package s3

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhotoKey(t *testing.T) {
	key, id := PhotoKey("TS-2026-00042", "front-wall")
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, "trip-segments/TS-2026-00042/front-wall/"+id+".jpg", key)

	dkey, did := DamagePhotoKey("TS-2026-00042", "inside")
	assert.True(t, strings.HasPrefix(dkey, "trip-segments/TS-2026-00042/damage/inside/"))
	assert.NotEqual(t, id, did)
}
