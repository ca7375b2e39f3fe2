package humastar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSignals(t *testing.T) {
	s, err := ParseSignals([]byte(`{"layer":"apcac_nunivotto3","tolerance":"0.01","zoom":7}`))
	require.NoError(t, err)

	assert.Equal(t, "apcac_nunivotto3", s.String("layer"))
	assert.Equal(t, "7", s.String("zoom"))
	assert.Equal(t, "", s.String("missing"))
}

func TestSignalsInputMustParse(t *testing.T) {
	in := &SignalsInput{RawBody: []byte(`not json`)}
	_, err := in.MustParse()
	assert.Error(t, err)
}

func TestActionLinkHeader(t *testing.T) {
	a := Action{Rel: "map", Href: "/api/v1/layers/x/map", Method: "GET", Title: "Mapa"}
	assert.Equal(t, `</api/v1/layers/x/map>; rel="map"; method="GET"; title="Mapa"`, a.LinkHeader())
	assert.Equal(t, `</health>; rel="up"`, Action{Rel: "up", Href: "/health"}.LinkHeader())
}
