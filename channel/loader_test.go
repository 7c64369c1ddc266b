package channel

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careroute/interlink/batch"
	pkgerrors "github.com/careroute/interlink/errors"
	"github.com/careroute/interlink/response"
)

const fullDefinitionYAML = `
name: adt-inbound
description: ADT feed from the hospital broker
source:
  connector:
    type: nats
    settings:
      subject: hospital.adt
  batch:
    mode: record
    recordDelimiter: "\r"
  filter:
    rules:
      - sequenceNumber: 1
        name: drop empties
        script: "msg.length > 0"
        enabled: true
  transformer:
    steps:
      - sequenceNumber: 1
        name: uppercase
        script: "msg.toUpperCase()"
        enabled: true
    inboundDataType: raw
    outboundDataType: raw
  maxProcessingThreads: 2
  queueCapacity: 50
  rateLimit:
    perSecond: 100
    burst: 10
destinations:
  - name: archive
    connector:
      type: file
      settings:
        directory: /var/spool/interlink
  - name: downstream
    durable: true
    queueOnFailure: true
    retryCount: 2
    retryIntervalMillis: 100
    connector:
      type: nats
      settings:
        subject: hospital.adt.out
response:
  mode: destinations_completed
`

func TestParseYAML_FullDefinition(t *testing.T) {
	ch, err := ParseYAML([]byte(fullDefinitionYAML))
	require.NoError(t, err)

	assert.NotEmpty(t, ch.ID, "missing id is assigned")
	assert.Equal(t, "adt-inbound", ch.Name)
	assert.Equal(t, "nats", ch.Source.Connector.Type)
	assert.Equal(t, "hospital.adt", ch.Source.Connector.Settings["subject"])
	assert.Equal(t, batch.ModeRecord, ch.Source.Batch.Mode)
	assert.Equal(t, "\r", ch.Source.Batch.RecordDelimiter)
	assert.Equal(t, 2, ch.Source.MaxProcessingThreads)
	assert.Equal(t, 50, ch.Source.QueueCapacity)
	assert.Equal(t, 100.0, ch.Source.RateLimit.PerSecond)

	require.Len(t, ch.Destinations, 2)
	assert.Equal(t, 1, ch.Destinations[0].MetaDataID)
	assert.Equal(t, 2, ch.Destinations[1].MetaDataID)
	assert.True(t, ch.Destinations[1].Durable)
	assert.True(t, ch.Destinations[1].QueueOnFailure)
	assert.Equal(t, 3, ch.Destinations[1].RetryConfig().MaxAttempts)

	assert.Equal(t, response.ModeDestinationsCompleted, ch.Response.Mode)
	assert.Equal(t, 2, ch.Response.DestinationCount)
}

func TestParseYAML_RejectsUnknownKey(t *testing.T) {
	_, err := ParseYAML([]byte(`
nmae: typo-channel
source:
  connector:
    type: nats
destinations:
  - name: archive
    connector:
      type: file
`))
	require.Error(t, err)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "nmae")
}

func TestParseYAML_MissingSource(t *testing.T) {
	_, err := ParseYAML([]byte("name: sourceless\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "source")
}

func TestParseYAML_InvalidYAML(t *testing.T) {
	_, err := ParseYAML([]byte("name: [unclosed"))
	require.Error(t, err)
}

func TestParseJSON_SemanticValidationRuns(t *testing.T) {
	// Schema-valid shape, but two destinations share a name.
	_, err := ParseJSON([]byte(`{
		"name": "dup-dest",
		"source": {"connector": {"type": "nats"}},
		"destinations": [
			{"name": "archive", "connector": {"type": "file"}},
			{"name": "archive", "connector": {"type": "file"}}
		]
	}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate destination name")
}

func TestLoad_DispatchesOnExtension(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "ch.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(fullDefinitionYAML), 0o644))

	ch, err := Load(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "adt-inbound", ch.Name)

	jsonPath := filepath.Join(dir, "ch.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{
		"name": "json-channel",
		"source": {"connector": {"type": "nats"}},
		"destinations": [{"name": "archive", "connector": {"type": "file"}}]
	}`), 0o644))

	ch, err = Load(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "json-channel", ch.Name)

	txtPath := filepath.Join(dir, "ch.txt")
	require.NoError(t, os.WriteFile(txtPath, []byte("name: nope"), 0o644))
	_, err = Load(txtPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported channel file extension")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsFatal(err))
}

func TestLoadDir(t *testing.T) {
	write := func(t *testing.T, dir, name, body string) {
		t.Helper()
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	minimal := func(name string) string {
		return `{"name": "` + name + `",
			"source": {"connector": {"type": "nats"}},
			"destinations": [{"name": "archive", "connector": {"type": "file"}}]}`
	}

	t.Run("loads definitions in file name order", func(t *testing.T) {
		dir := t.TempDir()
		write(t, dir, "b.json", minimal("second"))
		write(t, dir, "a.json", minimal("first"))
		write(t, dir, "README.md", "not a channel")
		require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

		channels, err := LoadDir(dir)
		require.NoError(t, err)
		require.Len(t, channels, 2)
		assert.Equal(t, "first", channels[0].Name)
		assert.Equal(t, "second", channels[1].Name)
	})

	t.Run("rejects duplicate channel names", func(t *testing.T) {
		dir := t.TempDir()
		write(t, dir, "a.json", minimal("same"))
		write(t, dir, "b.json", minimal("same"))

		_, err := LoadDir(dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "reuses channel name")
	})

	t.Run("names the offending file on parse failure", func(t *testing.T) {
		dir := t.TempDir()
		write(t, dir, "broken.json", `{"name": "x"}`)

		_, err := LoadDir(dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "broken.json")
	})
}
