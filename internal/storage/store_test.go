// internal/storage/store_test.go
package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestMemoryDriverRoundtrip(t *testing.T) {
	driver := NewMemoryDriver()

	_, found, err := driver.GetItem("missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, driver.SetItem("k", []byte(`{"a":1}`)))
	value, found, err := driver.GetItem("k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"a":1}`, string(value))

	// 取出的字节是副本，修改不影响存量数据
	value[0] = 'X'
	again, _, err := driver.GetItem("k")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(again))

	require.NoError(t, driver.RemoveItem("k"))
	_, found, err = driver.GetItem("k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestFileDriverRoundtrip(t *testing.T) {
	dir := t.TempDir()
	driver, err := NewFileDriver(dir)
	require.NoError(t, err)
	assert.Equal(t, "file", driver.Name())

	require.NoError(t, driver.SetItem("projects:all", []byte(`[]`)))

	// 键被映射为 namespace/id.json
	_, statErr := os.Stat(filepath.Join(dir, "projects", "all.json"))
	require.NoError(t, statErr)

	value, found, err := driver.GetItem("projects:all")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `[]`, string(value))

	require.NoError(t, driver.RemoveItem("projects:all"))
	_, found, err = driver.GetItem("projects:all")
	require.NoError(t, err)
	assert.False(t, found)

	// 删除不存在的键不报错
	require.NoError(t, driver.RemoveItem("projects:missing"))
}

func TestFileDriverSanitizesKeySegments(t *testing.T) {
	dir := t.TempDir()
	driver, err := NewFileDriver(dir)
	require.NoError(t, err)

	require.NoError(t, driver.SetItem("documents:../escape", []byte(`1`)))
	entries, err := os.ReadDir(filepath.Join(dir, "documents"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotContains(t, entries[0].Name(), "..")
}

func TestStoreObjectLifecycle(t *testing.T) {
	store := NewStoreWithDriver(NewMemoryDriver(), nil)
	assert.Equal(t, "memory", store.Backend())
	require.NoError(t, store.Ready())

	var loaded payload
	found, err := store.GetObject(NamespaceProjects, "p1", &loaded)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.SetObject(NamespaceProjects, "p1", payload{Name: "测试", Count: 3}))
	found, err = store.GetObject(NamespaceProjects, "p1", &loaded)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, payload{Name: "测试", Count: 3}, loaded)

	require.NoError(t, store.Remove(NamespaceProjects, "p1"))
	found, err = store.GetObject(NamespaceProjects, "p1", &loaded)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStoreNamespaceIsolation(t *testing.T) {
	store := NewStoreWithDriver(NewMemoryDriver(), nil)

	require.NoError(t, store.SetObject(NamespaceHistory, "p1", payload{Name: "history"}))
	require.NoError(t, store.SetObject(NamespaceDocuments, "p1", payload{Name: "documents"}))

	var fromHistory, fromDocuments payload
	_, err := store.GetObject(NamespaceHistory, "p1", &fromHistory)
	require.NoError(t, err)
	_, err = store.GetObject(NamespaceDocuments, "p1", &fromDocuments)
	require.NoError(t, err)

	assert.Equal(t, "history", fromHistory.Name)
	assert.Equal(t, "documents", fromDocuments.Name)
}

func TestNewStorePrefersFileDriver(t *testing.T) {
	store := NewStore(t.TempDir(), nil)
	assert.Equal(t, "file", store.Backend())
}

func TestStoreGetObjectBadJSON(t *testing.T) {
	driver := NewMemoryDriver()
	require.NoError(t, driver.SetItem("projects:bad", []byte("not-json")))

	store := NewStoreWithDriver(driver, nil)
	var loaded payload
	_, err := store.GetObject(NamespaceProjects, "bad", &loaded)
	assert.Error(t, err)
}
