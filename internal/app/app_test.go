package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestCreateApp(t *testing.T) {
	t.Parallel()
	got, err := CreateApp(&Config{})
	require.EqualError(t, err, "service name is required\nstop timeout is required")
	require.Nil(t, got)

	got, err = CreateApp(&Config{ServiceName: "test", StopTimeout: time.Second})
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestApp_Run(t *testing.T) {
	t.Parallel()

	t.Run("context cancel stops in reverse order", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		first := NewMockDependency(ctrl)
		second := NewMockDependency(ctrl)
		started := make(chan struct{}, 2)

		for _, d := range []*MockDependency{first, second} {
			d.EXPECT().Name().Return("dep").AnyTimes()
			d.EXPECT().Start().DoAndReturn(func() error {
				started <- struct{}{}
				return nil
			})
		}
		gomock.InOrder(
			second.EXPECT().Stop().Return(nil),
			first.EXPECT().Stop().Return(nil),
		)

		a, err := CreateApp(&Config{ServiceName: "test", StopTimeout: time.Second}, first, second)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			<-started
			<-started
			cancel()
		}()
		require.NoError(t, a.Run(ctx))
		require.EqualError(t, a.Run(ctx), "run has already been called")
	})

	t.Run("start failure", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		dep := NewMockDependency(ctrl)
		dep.EXPECT().Name().Return("broken").AnyTimes()
		dep.EXPECT().Start().Return(errors.New("port in use"))
		dep.EXPECT().Stop().Return(nil)

		a, err := CreateApp(&Config{ServiceName: "test", StopTimeout: time.Second}, dep)
		require.NoError(t, err)
		require.EqualError(t, a.Run(context.Background()),
			"failure in Start() for dependency broken: port in use")
	})

	t.Run("stop timeout", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		dep := NewMockDependency(ctrl)
		dep.EXPECT().Name().Return("slow").AnyTimes()
		dep.EXPECT().Start().Return(nil)
		dep.EXPECT().Stop().DoAndReturn(func() error {
			time.Sleep(200 * time.Millisecond)
			return nil
		})

		a, err := CreateApp(&Config{ServiceName: "test", StopTimeout: 20 * time.Millisecond}, dep)
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		err = a.Run(ctx)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
