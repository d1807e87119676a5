/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements.  See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License.  You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package marketplace

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mockBroker is a testify mock of Broker
type mockBroker struct {
	mock.Mock
}

func (m *mockBroker) result(args mock.Arguments) (bool, *CommandSet) {
	return args.Bool(0), args.Get(1).(*CommandSet)
}

func (m *mockBroker) ExecutePending(ctx context.Context, opts Options) (bool, *CommandSet) {
	return m.result(m.Called(opts))
}

func (m *mockBroker) Add(ctx context.Context, names []string, opts Options) (bool, *CommandSet) {
	return m.result(m.Called(names, opts))
}

func (m *mockBroker) Install(ctx context.Context, names []string, opts Options) (bool, *CommandSet) {
	return m.result(m.Called(names, opts))
}

func (m *mockBroker) Uninstall(ctx context.Context, names []string, opts Options) (bool, *CommandSet) {
	return m.result(m.Called(names, opts))
}

func (m *mockBroker) Remove(ctx context.Context, names []string, opts Options) (bool, *CommandSet) {
	return m.result(m.Called(names, opts))
}

func (m *mockBroker) Request(ctx context.Context, req *Request, opts Options) (bool, *CommandSet) {
	return m.result(m.Called(req, opts))
}

func (m *mockBroker) ListInstalled(ctx context.Context) ([]string, error) {
	args := m.Called()
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockBroker) Reset(ctx context.Context, opts Options) (bool, *CommandSet) {
	return m.result(m.Called(opts))
}

func (m *mockBroker) Purge(ctx context.Context, opts Options) (bool, *CommandSet) {
	return m.result(m.Called(opts))
}

// fakeMarker is a PendingChecker whose state the test controls
type fakeMarker struct{ exists bool }

func (f *fakeMarker) Exists() bool  { return f.exists }
func (f *fakeMarker) Path() string { return "/run/stctl/installAfterRestart.json" }

// memoryRecorder keeps recorded command sets
type memoryRecorder struct {
	sets []*CommandSet
	err  error
}

func (m *memoryRecorder) Record(ctx context.Context, cs *CommandSet) error {
	m.sets = append(m.sets, cs)
	return m.err
}

func commandSet(action string, cmds ...PackageCommand) *CommandSet {
	cs := NewCommandSet(action)
	for _, c := range cmds {
		cs.Record(c)
	}
	cs.Finish()
	return cs
}

func ok(op, name string) PackageCommand {
	return PackageCommand{Operation: op, Package: name, Success: true}
}

func failed(op, name string) PackageCommand {
	return PackageCommand{Operation: op, Package: name, Message: "boom"}
}

func TestApplyCombinedRequest(t *testing.T) {
	broker := new(mockBroker)
	history := &memoryRecorder{}
	coord := NewCoordinator(broker, &fakeMarker{}, history, zap.NewNop())

	req := NewRequest([]string{"kafka"}, []string{"jdbc"}, nil, nil)
	broker.On("Request", req, Options{}).Return(true, commandSet("request", ok(OpAdd, "kafka"), ok(OpInstall, "jdbc"))).Once()

	outcome, err := coord.Apply(context.Background(), req, Options{})
	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.Len(t, outcome.CommandSet.Commands, 2)
	require.Len(t, history.sets, 1)
	assert.Equal(t, outcome.CommandSet.ID, history.sets[0].ID)
	broker.AssertExpectations(t)
	broker.AssertNotCalled(t, "ExecutePending", mock.Anything)
}

func TestApplyNoDepsOrder(t *testing.T) {
	broker := new(mockBroker)
	coord := NewCoordinator(broker, &fakeMarker{}, nil, zap.NewNop())
	opts := Options{NoDeps: true}

	var order []string
	record := func(op string) func(mock.Arguments) {
		return func(mock.Arguments) { order = append(order, op) }
	}
	broker.On("Uninstall", []string{"c"}, opts).Run(record(OpUninstall)).Return(true, commandSet(OpUninstall, ok(OpUninstall, "c")))
	broker.On("Remove", []string{"d"}, opts).Run(record(OpRemove)).Return(true, commandSet(OpRemove, ok(OpRemove, "d")))
	broker.On("Add", []string{"a"}, opts).Run(record(OpAdd)).Return(true, commandSet(OpAdd, ok(OpAdd, "a")))
	broker.On("Install", []string{"b"}, opts).Run(record(OpInstall)).Return(false, commandSet(OpInstall, failed(OpInstall, "b")))

	outcome, err := coord.Apply(context.Background(), NewRequest([]string{"a"}, []string{"b"}, []string{"c"}, []string{"d"}), opts)
	assert.ErrorIs(t, err, ErrTransactionFailed)
	require.NotNil(t, outcome)
	assert.False(t, outcome.Success)
	assert.Equal(t, []string{OpUninstall, OpRemove, OpAdd, OpInstall}, order)
	assert.Len(t, outcome.CommandSet.Commands, 4)
	broker.AssertNotCalled(t, "Request", mock.Anything, mock.Anything)
}

func TestApplyNoDepsSkipsEmptySets(t *testing.T) {
	broker := new(mockBroker)
	coord := NewCoordinator(broker, &fakeMarker{}, nil, zap.NewNop())
	opts := Options{NoDeps: true}
	broker.On("Install", []string{"jdbc"}, opts).Return(true, commandSet(OpInstall, ok(OpInstall, "jdbc")))

	_, err := coord.Install(context.Background(), []string{"jdbc"}, opts)
	require.NoError(t, err)
	broker.AssertNumberOfCalls(t, "Install", 1)
	broker.AssertNotCalled(t, "Uninstall", mock.Anything, mock.Anything)
	broker.AssertNotCalled(t, "Add", mock.Anything, mock.Anything)
}

func TestApplyConflictNeverReachesBroker(t *testing.T) {
	broker := new(mockBroker)
	coord := NewCoordinator(broker, &fakeMarker{exists: true}, nil, zap.NewNop())

	_, err := coord.Apply(context.Background(), NewRequest(nil, []string{"jdbc"}, []string{"jdbc"}, nil), Options{})
	assert.ErrorIs(t, err, ErrConflictingRequest)
	assert.Empty(t, broker.Calls)
}

func TestApplyResumesPendingFirst(t *testing.T) {
	broker := new(mockBroker)
	marker := &fakeMarker{exists: true}
	coord := NewCoordinator(broker, marker, nil, zap.NewNop())
	req := NewRequest(nil, []string{"jdbc"}, nil, nil)

	broker.On("ExecutePending", Options{}).Run(func(mock.Arguments) { marker.exists = false }).
		Return(true, commandSet(OpResume, ok(OpInstall, "kafka"))).Once()
	broker.On("Request", req, Options{}).Return(true, commandSet("request", ok(OpInstall, "jdbc"))).Once()

	_, err := coord.Apply(context.Background(), req, Options{})
	require.NoError(t, err)
	require.Len(t, broker.Calls, 2)
	assert.Equal(t, "ExecutePending", broker.Calls[0].Method)
	assert.Equal(t, "Request", broker.Calls[1].Method)
}

func TestApplyPendingFailureBlocksRequest(t *testing.T) {
	broker := new(mockBroker)
	history := &memoryRecorder{}
	coord := NewCoordinator(broker, &fakeMarker{exists: true}, history, zap.NewNop())

	broker.On("ExecutePending", Options{}).Return(false, commandSet(OpResume, failed(OpInstall, "kafka")))

	outcome, err := coord.Apply(context.Background(), NewRequest(nil, []string{"jdbc"}, nil, nil), Options{})
	require.ErrorIs(t, err, ErrPendingActions)
	assert.Contains(t, err.Error(), "installAfterRestart.json")
	assert.Contains(t, err.Error(), "--ignore-missing")
	require.NotNil(t, outcome)
	assert.False(t, outcome.Success)
	broker.AssertNotCalled(t, "Request", mock.Anything, mock.Anything)
	assert.Len(t, history.sets, 1)
}

func TestResumeWithoutMarker(t *testing.T) {
	broker := new(mockBroker)
	outcome, err := NewCoordinator(broker, &fakeMarker{}, nil, zap.NewNop()).Resume(context.Background(), Options{})
	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.Empty(t, broker.Calls)
}

func TestSet(t *testing.T) {
	broker := new(mockBroker)
	coord := NewCoordinator(broker, &fakeMarker{}, nil, zap.NewNop())

	broker.On("ListInstalled").Return([]string{"b", "c"}, nil)
	want := NewRequest(nil, []string{"a"}, []string{"c"}, nil)
	broker.On("Request", want, Options{}).Return(true, commandSet("request", ok(OpUninstall, "c"), ok(OpInstall, "a")))

	outcome, err := coord.Set(context.Background(), []string{"a", "b"}, Options{})
	require.NoError(t, err)
	assert.True(t, outcome.Success)
	broker.AssertExpectations(t)
}

func TestSetListFailure(t *testing.T) {
	broker := new(mockBroker)
	broker.On("ListInstalled").Return([]string(nil), errors.New("permission denied"))

	_, err := NewCoordinator(broker, &fakeMarker{}, nil, zap.NewNop()).Set(context.Background(), []string{"a"}, Options{})
	assert.Error(t, err)
}

func TestResetAndPurge(t *testing.T) {
	broker := new(mockBroker)
	history := &memoryRecorder{err: errors.New("database is locked")}
	coord := NewCoordinator(broker, &fakeMarker{}, history, zap.NewNop())

	broker.On("Reset", Options{}).Return(true, commandSet("reset", ok(OpUninstall, "jdbc")))
	broker.On("Purge", Options{}).Return(false, commandSet("purge", failed(OpRemove, "jdbc")))

	outcome, err := coord.Reset(context.Background(), Options{})
	require.NoError(t, err, "history failures are logged, not returned")
	assert.Equal(t, "reset", outcome.CommandSet.Action)

	outcome, err = coord.Purge(context.Background(), Options{})
	assert.ErrorIs(t, err, ErrTransactionFailed)
	assert.False(t, outcome.Success)
}

func TestBrokerFailureWithoutFailedCommand(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		stub func(b *mockBroker)
		call func(c *Coordinator) (*Outcome, error)
	}{
		{
			name: "combined request",
			stub: func(b *mockBroker) {
				b.On("Request", mock.Anything, Options{}).Return(false, commandSet("request"))
			},
			call: func(c *Coordinator) (*Outcome, error) {
				return c.Install(context.Background(), []string{"jdbc"}, Options{})
			},
		},
		{
			name: "nodeps step",
			stub: func(b *mockBroker) {
				b.On("Add", []string{"kafka"}, Options{NoDeps: true}).Return(true, commandSet(OpAdd, ok(OpAdd, "kafka")))
				b.On("Install", []string{"jdbc"}, Options{NoDeps: true}).Return(false, commandSet(OpInstall))
			},
			call: func(c *Coordinator) (*Outcome, error) {
				return c.Apply(context.Background(), NewRequest([]string{"kafka"}, []string{"jdbc"}, nil, nil), Options{NoDeps: true})
			},
		},
		{
			name: "reset",
			stub: func(b *mockBroker) {
				b.On("Reset", Options{}).Return(false, commandSet("reset"))
			},
			call: func(c *Coordinator) (*Outcome, error) {
				return c.Reset(context.Background(), Options{})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			broker := new(mockBroker)
			tt.stub(broker)

			outcome, err := tt.call(NewCoordinator(broker, &fakeMarker{}, nil, zap.NewNop()))
			assert.ErrorIs(t, err, ErrTransactionFailed)
			require.NotNil(t, outcome)
			assert.False(t, outcome.Success)
		})
	}
}

func TestResumeBrokerFailureWithoutFailedCommand(t *testing.T) {
	broker := new(mockBroker)
	broker.On("ExecutePending", Options{}).Return(false, commandSet(OpResume))

	outcome, err := NewCoordinator(broker, &fakeMarker{exists: true}, nil, zap.NewNop()).Resume(context.Background(), Options{})
	assert.ErrorIs(t, err, ErrPendingActions)
	assert.False(t, outcome.Success)
}
