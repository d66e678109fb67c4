package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desim-project/desim/sim"
	"github.com/desim-project/desim/sim/models"
)

func TestWriteModuleTypes_DescribesDeclarations(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeModuleTypes(&buf, []*sim.ModuleType{models.SourceType, models.SinkType}))
	out := buf.String()

	assert.Contains(t, out, "Source")
	assert.Contains(t, out, models.SourceType.Doc)
	assert.Regexp(t, `param\s+interval time\s+= 1s\s+volatile`, out)
	assert.Regexp(t, `param\s+packetLength int\s+= 1000\s+B`, out)
	assert.Regexp(t, `gate\s+in\[0\]\s+input`, out)
	assert.Regexp(t, `signal\s+endToEndDelay`, out)
}

func TestWriteModuleTypes_RegisteredTypesIncludeModelsAndNetwork(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeModuleTypes(&buf, sim.ModuleTypes()))
	for _, name := range []string{"Echo", "Network", "Relay", "Sink", "Source"} {
		assert.Contains(t, buf.String(), name)
	}
}

func TestWriteModuleTypes_RequiredMatchesConstruction(t *testing.T) {
	typ := &sim.ModuleType{
		Name: "tagged",
		Params: []sim.ParamDecl{
			{Name: "label", Kind: sim.StringParam},
			{Name: "peer", Kind: sim.StringParam, Required: true},
			{Name: "rate", Kind: sim.DoubleParam},
		},
	}
	var buf bytes.Buffer
	require.NoError(t, writeModuleTypes(&buf, []*sim.ModuleType{typ}))
	out := buf.String()

	assert.Regexp(t, `param\s+label string\s+= ""`, out)
	assert.Regexp(t, `param\s+peer string\s+= \(required\)`, out)
	assert.Regexp(t, `param\s+rate double\s+= \(required\)`, out)
}
