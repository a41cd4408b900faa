package rpc

import (
	"context"
	"testing"
	"time"

	"github.com/koinos/koinos-proto-golang/koinos/rpc"
	"github.com/koinos/koinos-proto-golang/koinos/rpc/plugin"
	"github.com/koinos/koinos-txrelay/internal/p2perrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
)

type testNode struct {
	submitted [][]byte
	committed [][]byte
	submitErr error
}

func (n *testNode) SubmitTransaction(ctx context.Context, data []byte) error {
	n.submitted = append(n.submitted, data)
	return n.submitErr
}

func (n *testNode) CommitTransaction(ctx context.Context, data []byte) error {
	n.committed = append(n.committed, data)
	return nil
}

func request(t *testing.T, h *PluginRPCHandler, req *plugin.PluginRequest) *plugin.PluginResponse {
	data, err := proto.Marshal(req)
	require.NoError(t, err)

	respBytes, err := h.HandleRequest(PluginPrefix+RelayPluginName, data)
	require.NoError(t, err)

	resp := &plugin.PluginResponse{}
	require.NoError(t, proto.Unmarshal(respBytes, resp))
	return resp
}

func TestPluginSubmitData(t *testing.T) {
	node := &testNode{}
	h := NewPluginRPCHandler(node, time.Second)

	resp := request(t, h, &plugin.PluginRequest{
		Request: &plugin.PluginRequest_SubmitData{
			SubmitData: &plugin.SubmitDataRequest{Data: []byte{0x01, 0x02}},
		},
	})
	_, ok := resp.Response.(*plugin.PluginResponse_SubmitData)
	assert.True(t, ok)
	assert.Equal(t, [][]byte{{0x01, 0x02}}, node.submitted)

	node.submitErr = p2perrors.ErrInvalidTransaction
	resp = request(t, h, &plugin.PluginRequest{
		Request: &plugin.PluginRequest_SubmitData{
			SubmitData: &plugin.SubmitDataRequest{Data: []byte{0x03}},
		},
	})
	errResp, ok := resp.Response.(*plugin.PluginResponse_Error)
	require.True(t, ok)
	assert.Contains(t, errResp.Error.Message, p2perrors.ErrInvalidTransaction.Error())
}

func TestPluginReserved(t *testing.T) {
	h := NewPluginRPCHandler(&testNode{}, time.Second)

	resp := request(t, h, &plugin.PluginRequest{
		Request: &plugin.PluginRequest_Reserved{Reserved: &rpc.ReservedRpc{}},
	})
	_, ok := resp.Response.(*plugin.PluginResponse_Reserved)
	assert.True(t, ok)
}

func TestPluginMalformedRequest(t *testing.T) {
	node := &testNode{}
	h := NewPluginRPCHandler(node, time.Second)

	respBytes, err := h.HandleRequest(PluginPrefix+RelayPluginName, []byte{0xff, 0xff})
	require.NoError(t, err)

	resp := &plugin.PluginResponse{}
	require.NoError(t, proto.Unmarshal(respBytes, resp))
	_, ok := resp.Response.(*plugin.PluginResponse_Error)
	assert.True(t, ok)
	assert.Empty(t, node.submitted)
}

func TestHandleCommit(t *testing.T) {
	node := &testNode{}
	h := NewPluginRPCHandler(node, time.Second)

	h.HandleCommit(CommitTopic, []byte{0x07})
	assert.Equal(t, [][]byte{{0x07}}, node.committed)
}

func TestPayloadTypeString(t *testing.T) {
	assert.Equal(t, "GetMemoryPool", GetMemoryPoolPayload.String())
	assert.Equal(t, "Transaction", TransactionPayload.String())
	assert.Equal(t, "MemoryPool", MemoryPoolPayload.String())
	assert.Equal(t, "Unknown", PayloadType(9).String())
}
