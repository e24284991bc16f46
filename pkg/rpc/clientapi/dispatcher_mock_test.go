package clientapi

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/xapi-core/xapi-core/pkg/model"
	"github.com/xapi-core/xapi-core/pkg/services/library"
	"github.com/xapi-core/xapi-core/pkg/services/library/mock"
)

func TestDispatchVMDestroyCallsMockedService(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockVM := mock.NewMockVM(ctrl)
	mockVM.EXPECT().
		Destroy(gomock.Any(), model.Ref("task-0"), model.Ref("OpaqueRef:vm1")).
		Return(library.Result{Task: "task-2"}, nil)

	d := NewDispatcher()
	RegisterVM(d, mockVM)

	raw := json.RawMessage(`{"parent": "task-0", "ref": "OpaqueRef:vm1"}`)
	result, err := d.Dispatch(context.Background(), "VM.destroy", &raw)
	require.NoError(t, err)

	res, ok := result.(library.Result)
	require.True(t, ok)
	require.Equal(t, model.Ref("task-2"), res.Task)
}
