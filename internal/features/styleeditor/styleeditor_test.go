package styleeditor_test

import (
	"context"
	"errors"
	"testing"
	"testing/synctest"
	"time"

	"github.com/aretw0/ripple/internal/features/gis"
	"github.com/aretw0/ripple/internal/features/styleeditor"
	"github.com/aretw0/ripple/pkg/domain"
	"github.com/aretw0/ripple/pkg/epictest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockService struct {
	mock.Mock
}

func (m *mockService) Create(ctx context.Context, style styleeditor.Template) (string, error) {
	args := m.Called(ctx, style)
	return args.String(0), args.Error(1)
}

func (m *mockService) Update(ctx context.Context, id string, style styleeditor.Template) error {
	return m.Called(ctx, id, style).Error(0)
}

const css = "* { stroke: #ff0000; }"

func editorState(st styleeditor.State) domain.State {
	return domain.NewState(map[string]any{styleeditor.StateKey: st})
}

func TestSelectStyleTemplate_CreatesTemporaryStyle(t *testing.T) {
	svc := new(mockService)
	tpl := styleeditor.Template{Code: css, Format: "css"}
	svc.On("Create", mock.Anything, tpl).Return("tmp_style_1234", nil).Once()

	epictest.Drive(t, styleeditor.Handlers(styleeditor.DefaultConfig(), svc), epictest.Count(5),
		[]domain.Action{styleeditor.SelectStyleTemplate(css, "css")},
		func(actions []domain.Action) {
			require.Equal(t, []string{
				styleeditor.ActionLoadingStyle,
				styleeditor.ActionLoadingStyle,
				styleeditor.ActionLoadedStyle,
				gis.ActionUpdateOptionsByOwner,
				styleeditor.ActionUpdateTemporaryStyle,
			}, epictest.Types(actions))
			assert.Equal(t, styleeditor.Status{Status: "global"}, actions[0].Payload)
			assert.Equal(t, styleeditor.Status{Status: "created"}, actions[1].Payload)
			assert.Equal(t, gis.OwnerOptions{
				Owner:   styleeditor.Owner,
				Options: map[string]any{"style": "tmp_style_1234"},
			}, actions[3].Payload)
			assert.Equal(t, styleeditor.TemporaryStyle{
				TemporaryID: "tmp_style_1234",
				Code:        css,
				Format:      "css",
			}, actions[4].Payload)
		},
		epictest.WithState(editorState(styleeditor.State{})),
	)
	svc.AssertExpectations(t)
}

func TestSelectStyleTemplate_UpdatesExistingStyle(t *testing.T) {
	svc := new(mockService)
	tpl := styleeditor.Template{Code: css, Format: "css"}
	svc.On("Update", mock.Anything, "tmp_1", tpl).Return(nil).Once()

	epictest.Drive(t, styleeditor.Handlers(styleeditor.DefaultConfig(), svc), epictest.Count(5),
		[]domain.Action{styleeditor.SelectStyleTemplate(css, "css")},
		func(actions []domain.Action) {
			assert.Equal(t, styleeditor.Status{Status: "updated"}, actions[1].Payload)
			assert.Equal(t, "tmp_1", actions[4].Payload.(styleeditor.TemporaryStyle).TemporaryID)
		},
		epictest.WithState(editorState(styleeditor.State{TemporaryID: "tmp_1"})),
	)
	svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSelectStyleTemplate_FailureStillEnds(t *testing.T) {
	svc := new(mockService)
	svc.On("Create", mock.Anything, mock.Anything).Return("", errors.New("geoserver unavailable"))

	epictest.Drive(t, styleeditor.Handlers(styleeditor.DefaultConfig(), svc), epictest.Count(3),
		[]domain.Action{styleeditor.SelectStyleTemplate(css, "css")},
		func(actions []domain.Action) {
			require.Equal(t, []string{
				styleeditor.ActionLoadingStyle,
				styleeditor.ActionErrorStyle,
				styleeditor.ActionLoadedStyle,
			}, epictest.Types(actions))
			failure := actions[1].Payload.(styleeditor.StyleError)
			assert.Equal(t, "global", failure.Status)
			assert.Contains(t, failure.Message, "geoserver unavailable")
		},
	)
}

func TestSelectStyleTemplate_Serialized(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		svc := new(mockService)
		first := styleeditor.Template{Code: "first", Format: "css"}
		second := styleeditor.Template{Code: "second", Format: "css"}
		svc.On("Create", mock.Anything, first).WaitUntil(time.After(time.Second)).Return("a", nil)
		svc.On("Create", mock.Anything, second).Return("b", nil)

		epictest.Drive(t, styleeditor.Handlers(styleeditor.DefaultConfig(), svc), epictest.Count(10),
			[]domain.Action{
				styleeditor.SelectStyleTemplate("first", "css"),
				styleeditor.SelectStyleTemplate("second", "css"),
			},
			func(actions []domain.Action) {
				assert.Equal(t, "a", actions[4].Payload.(styleeditor.TemporaryStyle).TemporaryID)
				assert.Equal(t, "b", actions[9].Payload.(styleeditor.TemporaryStyle).TemporaryID)
			},
		)
	})
}

func TestPreview_DebouncedEdits(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		svc := new(mockService)
		final := styleeditor.Template{Code: "* { fill: blue; }", Format: "css"}
		svc.On("Update", mock.Anything, "tmp_1", final).Return(nil).Once()

		epictest.Drive(t, styleeditor.Handlers(styleeditor.DefaultConfig(), svc), epictest.Count(3),
			[]domain.Action{
				styleeditor.UpdateStyleCode("* { fill:", "css"),
				epictest.Delay(100 * time.Millisecond),
				styleeditor.UpdateStyleCode("* { fill: blue; }", "css"),
			},
			func(actions []domain.Action) {
				assert.Equal(t, []string{
					styleeditor.ActionLoadingStyle,
					styleeditor.ActionUpdateTemporaryStyle,
					styleeditor.ActionLoadedStyle,
				}, epictest.Types(actions))
			},
			epictest.WithState(editorState(styleeditor.State{TemporaryID: "tmp_1"})),
		)
		svc.AssertExpectations(t)
	})
}

func TestPreview_EmptyCodeIsRejected(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		svc := new(mockService)
		epictest.Drive(t, styleeditor.Handlers(styleeditor.DefaultConfig(), svc), epictest.Count(3),
			[]domain.Action{styleeditor.UpdateStyleCode("  ", "css")},
			func(actions []domain.Action) {
				assert.Equal(t, styleeditor.ActionErrorStyle, actions[1].Type)
			},
			epictest.WithState(editorState(styleeditor.State{TemporaryID: "tmp_1"})),
		)
		svc.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestReducer(t *testing.T) {
	r := styleeditor.Reducer()
	var st any = styleeditor.State{}
	st = r(st, styleeditor.LoadingStyle("global"))
	assert.Equal(t, "global", st.(styleeditor.State).Loading)
	st = r(st, styleeditor.UpdateTemporaryStyle("tmp", styleeditor.Template{Code: css, Format: "css"}))
	st = r(st, styleeditor.LoadedStyle())
	assert.Equal(t, styleeditor.State{TemporaryID: "tmp", Code: css, Format: "css"}, st)
}
