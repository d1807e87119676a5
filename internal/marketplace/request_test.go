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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCompound(t *testing.T) {
	req, err := ParseCompound([]string{"foo", "+bar", "-baz"})
	require.NoError(t, err)
	assert.Equal(t, []string{"foo"}, req.Add)
	assert.Equal(t, []string{"bar"}, req.Install)
	assert.Equal(t, []string{"baz"}, req.Uninstall)
	assert.Empty(t, req.Remove)
	assert.Equal(t, "foo +bar -baz", req.String())
}

func TestParseCompoundInvalid(t *testing.T) {
	for _, tokens := range [][]string{{""}, {"+"}, {"-"}, {"jdbc", "  "}, {"jdbc", "--nodeps"}} {
		_, err := ParseCompound(tokens)
		assert.ErrorIs(t, err, ErrInvalidArgument, "tokens %q", tokens)
	}
}

func TestParseCompoundCollapsesDuplicates(t *testing.T) {
	req, err := ParseCompound([]string{"+jdbc", "+kafka", "+jdbc"})
	require.NoError(t, err)
	assert.Equal(t, []string{"jdbc", "kafka"}, req.Install)
}

func TestSetRequest(t *testing.T) {
	req := SetRequest([]string{"a", "b"}, []string{"b", "c"})
	assert.Equal(t, []string{"a"}, req.Install)
	assert.Equal(t, []string{"c"}, req.Uninstall)
	assert.Empty(t, req.Add)
	assert.Empty(t, req.Remove)

	assert.True(t, SetRequest([]string{"x"}, []string{"x"}).Empty())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     *Request
		wantErr error
	}{
		{name: "disjoint", req: NewRequest([]string{"a"}, []string{"b"}, []string{"c"}, []string{"d"})},
		{name: "empty", req: &Request{}},
		{name: "install and uninstall", req: NewRequest(nil, []string{"jdbc"}, []string{"jdbc"}, nil), wantErr: ErrConflictingRequest},
		{name: "add and remove", req: NewRequest([]string{"kafka"}, nil, nil, []string{"kafka"}), wantErr: ErrConflictingRequest},
		{name: "empty name", req: &Request{Install: []string{""}}, wantErr: ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidateNamesEveryConflict(t *testing.T) {
	err := NewRequest(nil, []string{"a", "b"}, []string{"b", "a"}, nil).Validate()
	require.ErrorIs(t, err, ErrConflictingRequest)
	assert.Contains(t, err.Error(), "a (uninstall and install)")
	assert.Contains(t, err.Error(), "b (uninstall and install)")
}
