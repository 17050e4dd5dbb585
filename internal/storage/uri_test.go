package storage_test

import (
	"testing"

	"github.com/fsdh/datahub-samples/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURI(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want storage.Location
	}{
		{
			name: "abfss container root",
			raw:  "abfss://datahub@fsdhstorage.dfs.core.windows.net/",
			want: storage.Location{
				Scheme:         storage.SchemeABFSS,
				Container:      "datahub",
				Account:        "fsdhstorage",
				Service:        "dfs",
				EndpointSuffix: "core.windows.net",
				Path:           "",
			},
		},
		{
			name: "wasbs with nested path",
			raw:  "wasbs://datahub@fsdhstorage.blob.core.windows.net/raw/2024/",
			want: storage.Location{
				Scheme:         storage.SchemeWASBS,
				Container:      "datahub",
				Account:        "fsdhstorage",
				Service:        "blob",
				EndpointSuffix: "core.windows.net",
				Path:           "raw/2024",
			},
		},
		{
			name: "sovereign cloud suffix",
			raw:  "abfs://c@acct.dfs.core.usgovcloudapi.net/a.csv",
			want: storage.Location{
				Scheme:         storage.SchemeABFS,
				Container:      "c",
				Account:        "acct",
				Service:        "dfs",
				EndpointSuffix: "core.usgovcloudapi.net",
				Path:           "a.csv",
			},
		},
		{
			name: "file path",
			raw:  "file:///tmp/data/../sample.csv",
			want: storage.Location{Scheme: storage.SchemeFile, Path: "/tmp/sample.csv"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := storage.ParseURI(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, loc)
		})
	}
}

func TestParseURI_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "unsupported scheme", raw: "s3://bucket/key"},
		{name: "missing container", raw: "abfss://fsdhstorage.dfs.core.windows.net/"},
		{name: "short host", raw: "wasbs://c@localhost/"},
		{name: "file with host", raw: "file://server/share/a.csv"},
		{name: "no scheme", raw: "/mnt/fsdh"},
		{name: "parent container", raw: "abfss://..@fsdhstorage.dfs.core.windows.net/"},
		{name: "dot container", raw: "wasbs://.@fsdhstorage.blob.core.windows.net/"},
		{name: "uppercase container", raw: "abfss://DataHub@fsdhstorage.dfs.core.windows.net/"},
		{name: "account with dash", raw: "abfss://datahub@fsdh-storage.dfs.core.windows.net/"},
		{name: "unknown service", raw: "abfss://datahub@fsdhstorage.queue.core.windows.net/"},
		{name: "unknown endpoint suffix", raw: "abfss://datahub@fsdhstorage.dfs.attacker.example/"},
		{name: "suffix with extra label", raw: "abfss://datahub@fsdhstorage.dfs.core.windows.net.attacker.example/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := storage.ParseURI(tt.raw)
			assert.ErrorIs(t, err, storage.ErrInvalidURI)
		})
	}
}

func TestLocation_String(t *testing.T) {
	loc, err := storage.ParseURI("abfss://datahub@fsdhstorage.dfs.core.windows.net/")
	require.NoError(t, err)

	assert.Equal(t, "abfss://datahub@fsdhstorage.dfs.core.windows.net", loc.String())
	assert.Equal(t, "abfss://datahub@fsdhstorage.dfs.core.windows.net/fsdh-sample.csv", loc.Join("fsdh-sample.csv").String())
	assert.Equal(t, "abfss://datahub@fsdhstorage.dfs.core.windows.net/b", loc.Join("a", "../b").String())
	assert.Equal(t, "fsdhstorage.dfs.core.windows.net", loc.Host())
	assert.Equal(t, "https://fsdhstorage.blob.core.windows.net/", loc.BlobServiceURL())
	assert.True(t, loc.IsAzure())

	file, err := storage.ParseURI("file:///tmp")
	require.NoError(t, err)
	assert.False(t, file.IsAzure())
	assert.Equal(t, "file:///tmp/x.csv", file.Join("x.csv").String())
}

func TestLocation_Within(t *testing.T) {
	root, err := storage.ParseURI("abfss://datahub@fsdhstorage.dfs.core.windows.net/")
	require.NoError(t, err)
	raw, err := storage.ParseURI("wasbs://datahub@fsdhstorage.blob.core.windows.net/raw")
	require.NoError(t, err)
	file, err := storage.ParseURI("file:///data")
	require.NoError(t, err)

	tests := []struct {
		name string
		uri  string
		root storage.Location
		want bool
	}{
		{"container root", "abfss://datahub@fsdhstorage.dfs.core.windows.net/", root, true},
		{"file in container", "abfss://datahub@fsdhstorage.dfs.core.windows.net/fsdh-sample.csv", root, true},
		{"wasbs alias", "wasbs://datahub@fsdhstorage.blob.core.windows.net/a.csv", root, true},
		{"other container", "abfss://other@fsdhstorage.dfs.core.windows.net/", root, false},
		{"other account", "abfss://datahub@attacker.dfs.core.windows.net/", root, false},
		{"other cloud", "abfss://datahub@fsdhstorage.dfs.core.chinacloudapi.cn/", root, false},
		{"file against azure root", "file:///etc/passwd", root, false},
		{"below path root", "wasbs://datahub@fsdhstorage.blob.core.windows.net/raw/part-0.csv", raw, true},
		{"path root itself", "wasbs://datahub@fsdhstorage.blob.core.windows.net/raw/", raw, true},
		{"sibling sharing prefix", "wasbs://datahub@fsdhstorage.blob.core.windows.net/rawdata/a.csv", raw, false},
		{"escape with dots", "wasbs://datahub@fsdhstorage.blob.core.windows.net/raw/../secret.csv", raw, false},
		{"file below file root", "file:///data/a.csv", file, true},
		{"file outside file root", "file:///etc/passwd", file, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := storage.ParseURI(tt.uri)
			require.NoError(t, err)
			assert.Equal(t, tt.want, loc.Within(tt.root))
		})
	}
}

func TestExtraConfigKeys(t *testing.T) {
	assert.Equal(t, "fs.azure.account.key.fsdhstorage.blob.core.windows.net", storage.AccountKeyConfig("fsdhstorage"))
	assert.Equal(t, "fs.azure.sas.datahub.fsdhstorage.blob.core.windows.net", storage.SASConfig("datahub", "fsdhstorage"))
}
