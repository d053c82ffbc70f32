package handlers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"container-inspection-api-server/internal/imaging"
	"container-inspection-api-server/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhotoKind(t *testing.T) {
	kind, ok := photoKind("s3-front-wall-photo")
	assert.True(t, ok)
	assert.Equal(t, models.PhotoFrontWall, kind)

	kind, ok = photoKind("s3-driver-license-photo")
	assert.True(t, ok)
	assert.Equal(t, models.PhotoDriverLicense, kind)

	for _, bad := range []string{"front-wall", "s3-front-wall", "s3-roof-photo", "s3--photo"} {
		_, ok := photoKind(bad)
		assert.False(t, ok, bad)
	}
}

func TestParseLocation(t *testing.T) {
	cases := map[string]models.DamageLocation{
		"front-wall":       models.PhotoFrontWall,
		"left_wall":        models.PhotoLeftWall,
		"damage_inside":    models.PhotoInside,
		" right-wall ":     models.PhotoRightWall,
		"damage_back_wall": models.PhotoBackWall,
	}
	for in, want := range cases {
		got, ok := parseLocation(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	for _, bad := range []string{"seal", "truck_details", "", "damage_seal"} {
		_, ok := parseLocation(bad)
		assert.False(t, ok, bad)
	}
}

func TestNormalizeContainer(t *testing.T) {
	assert.Equal(t, "MSCU1234565", normalizeContainer(" mscu 123 4565\t"))
	assert.Equal(t, "", normalizeContainer("   "))
}

func formContext(t *testing.T, form url.Values) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c.Request = req
	return c
}

func TestParseGuide(t *testing.T) {
	g, err := parseGuide(formContext(t, url.Values{}))
	require.NoError(t, err)
	assert.Nil(t, g)

	g, err = parseGuide(formContext(t, url.Values{
		"previewWidth": {"390"}, "previewHeight": {"844"},
		"guideX": {"20"}, "guideY": {"200"}, "guideWidth": {"350"}, "guideHeight": {"260.5"},
		"scaleMode": {"stretch"},
	}))
	require.NoError(t, err)
	assert.Equal(t, &imaging.Guide{
		PreviewWidth: 390, PreviewHeight: 844, X: 20, Y: 200, Width: 350, Height: 260.5,
		Mode: imaging.ScaleStretch,
	}, g)

	_, err = parseGuide(formContext(t, url.Values{"previewWidth": {"390"}, "previewHeight": {"x"}}))
	assert.Error(t, err)
}
