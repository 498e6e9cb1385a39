// Copyright 2025 EngFlow Inc. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Hand-maintained in the shape mockgen would produce for the Assembler and
// Linker interfaces, so the toolchain tests never need a real `as`/`ld` on
// the test machine.

package toolchain

import (
	"reflect"

	"github.com/golang/mock/gomock"

	"github.com/coredump-labs/tinycc/internal/codegen"
)

// MockAssembler is a mock of the Assembler interface.
type MockAssembler struct {
	ctrl     *gomock.Controller
	recorder *MockAssemblerMockRecorder
}

// MockAssemblerMockRecorder is the mock recorder for MockAssembler.
type MockAssemblerMockRecorder struct {
	mock *MockAssembler
}

// NewMockAssembler creates a new mock instance.
func NewMockAssembler(ctrl *gomock.Controller) *MockAssembler {
	mock := &MockAssembler{ctrl: ctrl}
	mock.recorder = &MockAssemblerMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockAssembler) EXPECT() *MockAssemblerMockRecorder {
	return m.recorder
}

// Assemble mocks base method.
func (m *MockAssembler) Assemble(asmPath, objPath string, platform codegen.Platform) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Assemble", asmPath, objPath, platform)
	ret0, _ := ret[0].(error)
	return ret0
}

// Assemble indicates an expected call of Assemble.
func (mr *MockAssemblerMockRecorder) Assemble(asmPath, objPath, platform any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Assemble", reflect.TypeOf((*MockAssembler)(nil).Assemble), asmPath, objPath, platform)
}

// MockLinker is a mock of the Linker interface.
type MockLinker struct {
	ctrl     *gomock.Controller
	recorder *MockLinkerMockRecorder
}

// MockLinkerMockRecorder is the mock recorder for MockLinker.
type MockLinkerMockRecorder struct {
	mock *MockLinker
}

// NewMockLinker creates a new mock instance.
func NewMockLinker(ctrl *gomock.Controller) *MockLinker {
	mock := &MockLinker{ctrl: ctrl}
	mock.recorder = &MockLinkerMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockLinker) EXPECT() *MockLinkerMockRecorder {
	return m.recorder
}

// Link mocks base method.
func (m *MockLinker) Link(objPath, outPath string, platform codegen.Platform) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Link", objPath, outPath, platform)
	ret0, _ := ret[0].(error)
	return ret0
}

// Link indicates an expected call of Link.
func (mr *MockLinkerMockRecorder) Link(objPath, outPath, platform any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Link", reflect.TypeOf((*MockLinker)(nil).Link), objPath, outPath, platform)
}
