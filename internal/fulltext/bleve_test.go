package fulltext

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/notesearch/internal/location"
	"github.com/hyperjump/notesearch/internal/models"
)

const testIndex = "notes"

func newTestEngine(t testing.TB, opts ...BleveOption) *BleveEngine {
	t.Helper()
	resolver, err := location.NewTemp("fulltext-test-")
	require.NoError(t, err)
	e, err := NewBleveEngine(resolver, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, e.Close())
		assert.NoError(t, resolver.Close())
	})
	return e
}

func testDoc(t testing.TB, uid models.UniqueID, title, full string) *models.Document {
	t.Helper()
	fields := []struct {
		name, value string
		store       bool
		typ         models.FieldType
	}{
		{models.FieldUniqueID, uid.String(), true, models.ExactID},
		{models.FieldItemType, uid.Kind.String(), true, models.ExactID},
		{models.FieldItemID, fmt.Sprint(uid.ID), true, models.ExactID},
		{models.FieldItemTitle, title, true, models.FullText},
		{models.FieldItemFull, full, false, models.FullText},
	}
	doc := &models.Document{}
	for _, f := range fields {
		field, err := models.NewField(f.name, f.value, f.store, f.typ)
		require.NoError(t, err)
		doc.Add(field)
	}
	return doc
}

func ids(results []models.Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.ID.String()
	}
	return out
}

func writePhysics(t *testing.T, e *BleveEngine, lang string) {
	t.Helper()
	docs := []*models.Document{
		testDoc(t, models.UniqueID{Kind: 1, ID: 1}, "One", "physics of motion"),
		testDoc(t, models.UniqueID{Kind: 1, ID: 2}, "Two", "quantum physics"),
		testDoc(t, models.UniqueID{Kind: 1, ID: 3}, "Three", "physics and chemistry"),
	}
	require.NoError(t, e.Write(context.Background(), docs, testIndex, lang, true))
}

func TestWriteCountSearch_SingleDocument(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	doc := testDoc(t, models.UniqueID{Kind: 1, ID: 42}, "Relativity", "Relativity theory of gravitation")

	require.NoError(t, e.Write(ctx, []*models.Document{doc}, testIndex, "", true))

	n, err := e.Count(ctx, testIndex, "")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)

	results, err := e.Search(ctx, "gravitation", testIndex, "", 10)
	require.NoError(t, err)
	assert.Equal(t, []models.Result{{ID: models.UniqueID{Kind: 1, ID: 42}, Title: "Relativity"}}, results)
}

func TestSearch_CapsResults(t *testing.T) {
	e := newTestEngine(t)
	writePhysics(t, e, "")
	ctx := context.Background()

	results, err := e.Search(ctx, "physics", testIndex, "", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, id := range ids(results) {
		assert.Contains(t, []string{"1:1", "1:2", "1:3"}, id)
	}

	for n := 0; n <= 4; n++ {
		results, err := e.Search(ctx, "physics", testIndex, "", n)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(results), n)
	}
}

func TestDeleteByKey(t *testing.T) {
	e := newTestEngine(t)
	writePhysics(t, e, "")
	ctx := context.Background()

	require.NoError(t, e.DeleteByKey(ctx, "1:2", models.FieldUniqueID, testIndex, ""))

	n, err := e.Count(ctx, testIndex, "")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)

	results, err := e.Search(ctx, "physics", testIndex, "", 10)
	require.NoError(t, err)
	assert.NotContains(t, ids(results), "1:2")
	assert.Len(t, results, 2)
}

func TestDeleteByKey_RemovesEveryDocumentOfKey(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	uid := models.UniqueID{Kind: 2, ID: 7}
	docs := []*models.Document{
		testDoc(t, uid, "Principia", "part one axioms"),
		testDoc(t, uid, "Principia", "part two motion"),
		testDoc(t, models.UniqueID{Kind: 2, ID: 8}, "Opticks", "light"),
	}
	require.NoError(t, e.Write(ctx, docs, testIndex, "en", true))

	require.NoError(t, e.DeleteByKey(ctx, uid.String(), models.FieldUniqueID, testIndex, "en"))
	n, err := e.Count(ctx, testIndex, "en")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
}

func TestDeleteByKey_MissingKeyIsNoop(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.DeleteByKey(ctx, "1:99", models.FieldUniqueID, testIndex, ""), "absent index")

	writePhysics(t, e, "")
	require.NoError(t, e.DeleteByKey(ctx, "1:99", models.FieldUniqueID, testIndex, ""))
	n, err := e.Count(ctx, testIndex, "")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)
}

func TestDeleteByKey_OtherField(t *testing.T) {
	e := newTestEngine(t)
	writePhysics(t, e, "")
	ctx := context.Background()

	require.NoError(t, e.DeleteByKey(ctx, "3", models.FieldItemID, testIndex, ""))
	results, err := e.Search(ctx, "physics", testIndex, "", 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1:1", "1:2"}, ids(results))
}

func TestInitialize_EmptiesIndex(t *testing.T) {
	e := newTestEngine(t)
	writePhysics(t, e, "")
	ctx := context.Background()

	require.NoError(t, e.Initialize(ctx, testIndex, ""))
	n, err := e.Count(ctx, testIndex, "")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), n)

	results, err := e.Search(ctx, "physics", testIndex, "", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestInitialize_Idempotent(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		require.NoError(t, e.Initialize(ctx, testIndex, "de"))
		n, err := e.Count(ctx, testIndex, "de")
		require.NoError(t, err)
		assert.Equal(t, uint64(0), n)
	}
}

func TestCount_AbsentIndexIsZero(t *testing.T) {
	e := newTestEngine(t)
	n, err := e.Count(context.Background(), "never-written", "fr")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), n)

	results, err := e.Search(context.Background(), "anything", "never-written", "fr", 5)
	require.NoError(t, err)
	require.NoError(t, e.DeleteByKey(context.Background(), "1:1", models.FieldUniqueID, "never-written", "fr"))

	_, err = os.Stat(filepath.Join(e.resolver.Root(), "never-written"))
	assert.True(t, os.IsNotExist(err), "reads must not create the index directory: %v", err)
	assert.Empty(t, results)
}

func TestWrite_AppendKeepsExistingDocuments(t *testing.T) {
	e := newTestEngine(t)
	writePhysics(t, e, "")
	ctx := context.Background()

	extra := testDoc(t, models.UniqueID{Kind: 3, ID: 1}, "Curie", "radioactivity physics pioneer")
	require.NoError(t, e.Write(ctx, []*models.Document{extra}, testIndex, "", false))

	n, err := e.Count(ctx, testIndex, "")
	require.NoError(t, err)
	assert.Equal(t, uint64(4), n)
}

func TestWrite_AppendCreatesIndex(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	doc := testDoc(t, models.UniqueID{Kind: 1, ID: 5}, "Note", "first append")
	require.NoError(t, e.Write(ctx, []*models.Document{doc}, testIndex, "", false))
	n, err := e.Count(ctx, testIndex, "")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
}

func TestWrite_CreateFailureKeepsPreviousIndex(t *testing.T) {
	e := newTestEngine(t)
	writePhysics(t, e, "")
	ctx := context.Background()

	bad := &models.Document{}
	good := testDoc(t, models.UniqueID{Kind: 1, ID: 9}, "New", "replacement")
	err := e.Write(ctx, []*models.Document{good, bad}, testIndex, "", true)
	require.Error(t, err)

	n, err := e.Count(ctx, testIndex, "")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n, "previous index must survive a failed rebuild")

	_, path, err := e.locate(testIndex, "", false)
	require.NoError(t, err)
	leftovers, err := filepath.Glob(path + ".staging-*")
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestWrite_AppendFailureCommitsNothing(t *testing.T) {
	e := newTestEngine(t)
	writePhysics(t, e, "")
	ctx := context.Background()

	good := testDoc(t, models.UniqueID{Kind: 1, ID: 9}, "New", "addition")
	err := e.Write(ctx, []*models.Document{good, nil}, testIndex, "", false)
	require.Error(t, err)
	var cfgErr *models.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))

	n, err := e.Count(ctx, testIndex, "")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)
}

func TestSearch_SyntaxError(t *testing.T) {
	e := newTestEngine(t)
	writePhysics(t, e, "")

	for _, q := range []string{`"unbalanced quote`, `^`} {
		_, err := e.Search(context.Background(), q, testIndex, "", 10)
		require.Error(t, err, "query %q", q)
		var syntaxErr *models.QuerySyntaxError
		require.True(t, errors.As(err, &syntaxErr), "query %q: %T", q, err)
		assert.Equal(t, q, syntaxErr.Query)
		assert.True(t, errors.Is(err, models.ErrQuerySyntax))
	}
}

func TestSearch_LanguageAnalyzerSymmetry(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	doc := testDoc(t, models.UniqueID{Kind: 1, ID: 1}, "Walking", "She was running through the gardens")
	require.NoError(t, e.Write(ctx, []*models.Document{doc}, testIndex, "en", true))

	results, err := e.Search(ctx, "runs garden", testIndex, "en", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"1:1"}, ids(results), "stemmed query must match stemmed content")

	// the default-language index is a separate physical index
	n, err := e.Count(ctx, testIndex, "")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), n)
}

func TestSearch_RanksHigherOverlapFirst(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	docs := []*models.Document{
		testDoc(t, models.UniqueID{Kind: 1, ID: 1}, "Weak", "entropy appears once among many other unrelated words here"),
		testDoc(t, models.UniqueID{Kind: 1, ID: 2}, "Strong", "entropy entropy thermodynamics entropy"),
	}
	require.NoError(t, e.Write(ctx, docs, testIndex, "", true))

	results, err := e.Search(ctx, "entropy thermodynamics", testIndex, "", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "1:2", results[0].ID.String())
}

func TestSearch_OneResultPerRecord(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	uid := models.UniqueID{Kind: 2, ID: 1}
	docs := []*models.Document{
		testDoc(t, uid, "Origin", "species selection"),
		testDoc(t, uid, "Origin", "selection variation"),
		testDoc(t, models.UniqueID{Kind: 2, ID: 2}, "Descent", "selection sexual"),
	}
	require.NoError(t, e.Write(ctx, docs, testIndex, "", true))

	results, err := e.Search(ctx, "selection", testIndex, "", 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"2:1", "2:2"}, ids(results))
}

func TestReadsDuringWrites(t *testing.T) {
	e := newTestEngine(t)
	writePhysics(t, e, "")
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			doc := testDoc(t, models.UniqueID{Kind: 3, ID: int64(100 + i)}, "Extra", "physics extra")
			assert.NoError(t, e.Write(ctx, []*models.Document{doc}, testIndex, "", false))
		}(i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := e.Count(ctx, testIndex, "")
			assert.NoError(t, err)
			assert.GreaterOrEqual(t, n, uint64(3))
			_, err = e.Search(ctx, "physics", testIndex, "", 10)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	n, err := e.Count(ctx, testIndex, "")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), n)
}

func TestReplaceByKey(t *testing.T) {
	e := newTestEngine(t)
	writePhysics(t, e, "")
	ctx := context.Background()
	uid := models.UniqueID{Kind: 1, ID: 2}

	replacement := []*models.Document{
		testDoc(t, uid, "Two", "relativity first part"),
		testDoc(t, uid, "Two", "relativity second part"),
	}
	require.NoError(t, e.ReplaceByKey(ctx, uid.String(), models.FieldUniqueID, replacement, testIndex, ""))

	n, err := e.Count(ctx, testIndex, "")
	require.NoError(t, err)
	assert.Equal(t, uint64(4), n)
	results, err := e.Search(ctx, "physics", testIndex, "", 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1:1", "1:3"}, ids(results))
	results, err = e.Search(ctx, "relativity", testIndex, "", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"1:2"}, ids(results))
}

func TestReplaceByKey_FailureKeepsOldDocuments(t *testing.T) {
	e := newTestEngine(t)
	writePhysics(t, e, "")
	ctx := context.Background()
	uid := models.UniqueID{Kind: 1, ID: 2}

	err := e.ReplaceByKey(ctx, uid.String(), models.FieldUniqueID,
		[]*models.Document{testDoc(t, uid, "Two", "relativity"), {}}, testIndex, "")
	require.Error(t, err)

	results, err := e.Search(ctx, "quantum", testIndex, "", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"1:2"}, ids(results), "old documents must survive a failed replace")
}

func TestReplaceByKey_CreatesIndex(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	uid := models.UniqueID{Kind: 3, ID: 1}
	require.NoError(t, e.ReplaceByKey(ctx, uid.String(), models.FieldUniqueID,
		[]*models.Document{testDoc(t, uid, "Noether", "algebra")}, testIndex, "de"))
	n, err := e.Count(ctx, testIndex, "de")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)

	err = e.ReplaceByKey(ctx, "", models.FieldUniqueID, nil, testIndex, "de")
	assert.True(t, errors.Is(err, models.ErrConfiguration))
}

func TestSearch_ReusesParsedQuery(t *testing.T) {
	e := newTestEngine(t, WithQueryCacheSize(1))
	writePhysics(t, e, "")
	ctx := context.Background()

	for _, q := range []string{"quantum", "chemistry", "quantum"} {
		results, err := e.Search(ctx, q, testIndex, "", 10)
		require.NoError(t, err)
		assert.Len(t, results, 1, "query %q", q)
	}
	assert.Equal(t, 1, e.queries.Len())
	assert.True(t, e.queries.Contains("quantum"))

	_, err := e.Search(ctx, `"open`, testIndex, "", 10)
	require.Error(t, err)
	assert.False(t, e.queries.Contains(`"open`), "failed parses are not cached")
}

// Two engines over one root stand in for two processes: the lock files they
// take are separate open files, so they exclude each other like processes do.
func TestEnginesShareRoot(t *testing.T) {
	root := t.TempDir()
	first, err := NewBleveEngine(location.New(root))
	require.NoError(t, err)
	defer first.Close()
	second, err := NewBleveEngine(location.New(root))
	require.NoError(t, err)
	defer second.Close()
	ctx := context.Background()

	writePhysics(t, first, "en")

	done := make(chan uint64, 1)
	go func() {
		n, err := second.Count(ctx, testIndex, "en")
		assert.NoError(t, err)
		done <- n
	}()
	select {
	case n := <-done:
		assert.Equal(t, uint64(3), n)
	case <-time.After(10 * time.Second):
		t.Fatal("second engine blocked by the first one")
	}

	extra := testDoc(t, models.UniqueID{Kind: 3, ID: 1}, "Curie", "radioactivity")
	require.NoError(t, second.Write(ctx, []*models.Document{extra}, testIndex, "en", false))
	results, err := first.Search(ctx, "radioactivity", testIndex, "en", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"3:1"}, ids(results))

	// a rebuild by one engine is what the other reads next
	rebuilt := testDoc(t, models.UniqueID{Kind: 1, ID: 9}, "Nine", "thermodynamics")
	require.NoError(t, second.Write(ctx, []*models.Document{rebuilt}, testIndex, "en", true))
	n, err := first.Count(ctx, testIndex, "en")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
	results, err = first.Search(ctx, "thermodynamics", testIndex, "en", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"1:9"}, ids(results))
}

func TestEnginesShareRoot_WaitIsBoundedByContext(t *testing.T) {
	root := t.TempDir()
	first, err := NewBleveEngine(location.New(root))
	require.NoError(t, err)
	defer first.Close()
	second, err := NewBleveEngine(location.New(root))
	require.NoError(t, err)
	defer second.Close()
	writePhysics(t, first, "")

	_, path, err := first.locate(testIndex, "", false)
	require.NoError(t, err)
	h, err := first.handles.acquire(context.Background(), path, func() (bleve.Index, error) { return openExisting(path) })
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = second.Count(ctx, testIndex, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrStorageIO))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	first.handles.release(h)
	n, err := second.Count(context.Background(), testIndex, "")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)
}

func TestHandles_SharedWithinEngine(t *testing.T) {
	e := newTestEngine(t)
	writePhysics(t, e, "")
	ctx := context.Background()
	_, path, err := e.locate(testIndex, "", false)
	require.NoError(t, err)

	open := func() (bleve.Index, error) { return openExisting(path) }
	h1, err := e.handles.acquire(ctx, path, open)
	require.NoError(t, err)
	h2, err := e.handles.acquire(ctx, path, open)
	require.NoError(t, err)
	assert.Same(t, h1, h2)

	// a call running beside the held handle is not blocked by it
	n, err := e.Count(ctx, testIndex, "")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)

	e.handles.release(h1)
	e.handles.release(h2)
	assert.Nil(t, e.handles.site(path).h, "the index is closed once the last call releases it")
}

func TestLocate_ReportsStorageError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0600))
	e, err := NewBleveEngine(location.New(blocker))
	require.NoError(t, err)
	defer e.Close()

	err = e.Initialize(context.Background(), testIndex, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrStorageIO))
}

func TestSupportedLanguages(t *testing.T) {
	e := newTestEngine(t)
	assert.Contains(t, e.SupportedLanguages(), "en")
}
