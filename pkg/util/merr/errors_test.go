// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package merr

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/suite"
)

type ErrSuite struct {
	suite.Suite
}

func (s *ErrSuite) TestCode() {
	err := WrapErrSaveTypeUnrecognized("Widget")
	errors.Wrap(err, "failed to decode record")
	s.ErrorIs(err, ErrSaveTypeUnrecognized)
	s.Equal(Code(ErrSaveTypeUnrecognized), Code(err))
	s.Equal(TimeoutCode, Code(context.DeadlineExceeded))
	s.Equal(CanceledCode, Code(context.Canceled))
	s.Equal(errUnexpected.errCode, Code(errUnexpected))
	s.Equal(int32(0), Code(nil))

	sameCodeErr := newZeusError("new error", ErrSaveTypeUnrecognized.errCode, false)
	s.True(sameCodeErr.Is(ErrSaveTypeUnrecognized))
}

func (s *ErrSuite) TestWrap() {
	// IO 相关错误。
	s.ErrorIs(WrapErrIoKeyNotFound("/tmp/save.dat", "failed to load"), ErrIoKeyNotFound)
	s.ErrorIs(WrapErrIoFailed("/tmp/save.dat", errors.New("disk full")), ErrIoFailed)
	s.ErrorIs(WrapErrIoFailedReason("mock reason", "failed to save"), ErrIoFailed)
	s.NoError(WrapErrIoFailed("/tmp/save.dat", nil))

	// Parameter 相关错误。
	s.ErrorIs(WrapErrParameterInvalid(8, 1, "failed to create encoder"), ErrParameterInvalid)
	s.ErrorIs(WrapErrParameterInvalidMsg("wrong state code: %d", 300), ErrParameterInvalid)
	s.ErrorIs(WrapErrParameterMissing("registry"), ErrParameterMissing)

	// 编码相关错误。
	s.ErrorIs(WrapErrSaveEncodeFunc("onHit"), ErrSaveEncodeFunc)
	s.ErrorIs(WrapErrSaveCycleDetected("Player", 3), ErrSaveCycleDetected)
	s.ErrorIs(WrapErrSaveDepthExceeded(512), ErrSaveDepthExceeded)
	s.ErrorIs(WrapErrSaveKeyUnhashable("[]interface {}"), ErrSaveKeyUnhashable)

	// 解码相关错误。
	s.ErrorIs(WrapErrSaveDecodeFunc("onHit"), ErrSaveDecodeFunc)
	s.ErrorIs(WrapErrSaveTypeUnrecognized("Widget", "failed to rebuild"), ErrSaveTypeUnrecognized)
	s.ErrorIs(WrapErrSaveDirectiveInvalid("= "), ErrSaveDirectiveInvalid)

	// 文件格式相关错误。
	s.ErrorIs(WrapErrSaveFormatMalformed("item count exceeds remaining lines"), ErrSaveFormatMalformed)
	s.ErrorIs(WrapErrSaveLeafInvalid("a\nb"), ErrSaveLeafInvalid)
	s.ErrorIs(WrapErrSaveLeafEscapeInvalid(`\q`, 0), ErrSaveLeafEscapeInvalid)
}

func (s *ErrSuite) TestIsRetryable() {
	s.True(IsRetryableErr(ErrIoUnexpectEOF))
	s.False(IsRetryableErr(ErrSaveTypeUnrecognized))
	s.False(IsRetryableErr(errors.New("mock error")))
}

func (s *ErrSuite) TestErrorType() {
	s.Equal(InputError, GetErrorType(ErrSaveCycleDetected))
	s.Equal(SystemError, GetErrorType(ErrIoFailed))
	s.Equal(SystemError, GetErrorType(errors.New("mock error")))

	err := WrapErrAsInputError(ErrIoFailed)
	s.Equal(InputError, GetErrorType(err))
}

func (s *ErrSuite) TestCombine() {
	var (
		errFirst  = errors.New("first")
		errSecond = errors.New("second")
		errThird  = errors.New("third")
	)

	err := Combine(errFirst, errSecond)
	s.True(errors.Is(err, errFirst))
	s.True(errors.Is(err, errSecond))
	s.False(errors.Is(err, errThird))

	s.Equal("first: second", err.Error())
}

func (s *ErrSuite) TestCombineWithNil() {
	err := errors.New("non-nil")

	err = Combine(nil, err)
	s.NotNil(err)
}

func (s *ErrSuite) TestCombineOnlyNil() {
	err := Combine(nil, nil)
	s.Nil(err)
}

func (s *ErrSuite) TestCombineCode() {
	err := Combine(WrapErrSaveFormatMalformed("truncated"), WrapErrSaveTypeUnrecognized("Widget"))
	s.Equal(Code(ErrSaveTypeUnrecognized), Code(err))
}

func TestErrors(t *testing.T) {
	suite.Run(t, new(ErrSuite))
}
