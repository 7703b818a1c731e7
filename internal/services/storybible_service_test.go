// internal/services/storybible_service_test.go
package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moyu-ai/moyu-writer/internal/models"
)

func TestGetSeedsDemoBible(t *testing.T) {
	svc := NewStoryBibleService(newTestStore(), nil)

	bible, err := svc.Get("p1")
	require.NoError(t, err)
	assert.NotEmpty(t, bible.Synopsis.Summary)
	assert.NotEmpty(t, bible.Characters)

	// 第二次读取拿到的是落库的同一份
	again, err := svc.Get("p1")
	require.NoError(t, err)
	assert.Equal(t, bible.Synopsis.Summary, again.Synopsis.Summary)
}

func TestUpdateBraindumpAndSynopsis(t *testing.T) {
	svc := NewStoryBibleService(newTestStore(), nil)

	bible, err := svc.UpdateBraindump("p1", models.StoryBibleBraindump{Ideas: "午夜的钟楼"})
	require.NoError(t, err)
	assert.Equal(t, "午夜的钟楼", bible.Braindump.Ideas)
	assert.Positive(t, bible.Braindump.LastUpdated)

	bible, err = svc.UpdateSynopsis("p1", models.StoryBibleSynopsis{
		Summary: "新的概要",
		Beats:   []string{"开端", "转折"},
	})
	require.NoError(t, err)
	assert.Equal(t, "新的概要", bible.Synopsis.Summary)
	assert.Len(t, bible.Synopsis.Beats, 2)
}

func TestUpsertCharacterReplacesById(t *testing.T) {
	svc := NewStoryBibleService(newTestStore(), nil)

	bible, err := svc.Get("p1")
	require.NoError(t, err)
	before := len(bible.Characters)

	bible, err = svc.UpsertCharacter("p1", models.StoryBibleCharacter{
		ID: "char_new", Name: "林雨", Role: "对手",
	})
	require.NoError(t, err)
	assert.Len(t, bible.Characters, before+1)

	bible, err = svc.UpsertCharacter("p1", models.StoryBibleCharacter{
		ID: "char_new", Name: "林雨", Role: "盟友",
	})
	require.NoError(t, err)
	assert.Len(t, bible.Characters, before+1)

	var updated *models.StoryBibleCharacter
	for i := range bible.Characters {
		if bible.Characters[i].ID == "char_new" {
			updated = &bible.Characters[i]
		}
	}
	require.NotNil(t, updated)
	assert.Equal(t, "盟友", updated.Role)
	assert.Positive(t, updated.LastUpdated)
}

func TestUpsertSceneAndWorldEntry(t *testing.T) {
	svc := NewStoryBibleService(newTestStore(), nil)

	bible, err := svc.UpsertScene("p1", models.StoryBibleScene{
		ID: "scene_x", Title: "天台对峙", Status: "draft",
	})
	require.NoError(t, err)
	found := false
	for _, scene := range bible.Scenes {
		if scene.ID == "scene_x" {
			found = true
			assert.Equal(t, "天台对峙", scene.Title)
		}
	}
	assert.True(t, found)

	bible, err = svc.UpsertWorldEntry("p1", models.StoryBibleWorldEntry{
		ID: "world_x", Kind: "location", Name: "旧钟楼",
	})
	require.NoError(t, err)
	found = false
	for _, entry := range bible.Worldbuilding {
		if entry.ID == "world_x" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestReplaceOutlineAndStyle(t *testing.T) {
	svc := NewStoryBibleService(newTestStore(), nil)

	bible, err := svc.ReplaceOutline("p1", []models.StoryBibleOutlineNode{
		{ID: "o1", Title: "第一卷", Order: 0, Children: []models.StoryBibleOutlineNode{
			{ID: "o1-1", Title: "初遇", Order: 0},
		}},
	})
	require.NoError(t, err)
	require.Len(t, bible.Outline, 1)
	assert.Len(t, bible.Outline[0].Children, 1)

	bible, err = svc.ReplaceOutline("p1", nil)
	require.NoError(t, err)
	assert.NotNil(t, bible.Outline)
	assert.Empty(t, bible.Outline)

	bible, err = svc.UpdateStyle("p1", models.StoryBibleStyle{
		Tone: "冷峻", POV: "第三人称", Genre: []string{"科幻"},
	})
	require.NoError(t, err)
	assert.Equal(t, "冷峻", bible.Style.Tone)
	assert.Equal(t, []string{"科幻"}, bible.Style.Genre)
}
