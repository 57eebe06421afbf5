package audio

import (
	"context"
	"io"
	"reflect"
	"testing"
	"time"

	pulseproto "github.com/jfreymuth/pulse/proto"
	"github.com/stretchr/testify/require"
)

func TestSelectDeviceFromListPrimaryDefault(t *testing.T) {
	devices := []Device{
		{ID: "elgato", Description: "Elgato Wave 3 Mono", Available: true, Default: true},
		{ID: "sony", Description: "Sony WH-1000XM6", Available: true},
	}

	selection, err := selectDeviceFromList(devices, "default", "default")
	require.NoError(t, err)
	require.Equal(t, "elgato", selection.Device.ID)
	require.Empty(t, selection.Warning)
}

func TestSelectDeviceFromListMutedPrimaryUsesFallback(t *testing.T) {
	devices := []Device{
		{ID: "elgato", Description: "Elgato Wave 3 Mono", Available: true, Muted: true, Default: true},
		{ID: "sony", Description: "Sony WH-1000XM6", Available: true},
	}

	selection, err := selectDeviceFromList(devices, "elgato", "sony")
	require.NoError(t, err)
	require.Equal(t, "sony", selection.Device.ID)
	require.Contains(t, selection.Warning, "muted")
	require.True(t, selection.Fallback)
}

func TestSelectDeviceFromListFailsWhenSelectedAndFallbackMuted(t *testing.T) {
	devices := []Device{
		{ID: "elgato", Description: "Elgato Wave 3 Mono", Available: true, Muted: true, Default: true},
	}

	_, err := selectDeviceFromList(devices, "default", "default")
	require.Error(t, err)
	require.Contains(t, err.Error(), "muted")
}

func TestSelectDeviceFromListUnknownInput(t *testing.T) {
	devices := []Device{{ID: "elgato", Description: "Elgato Wave 3 Mono", Available: true, Default: true}}

	_, err := selectDeviceFromList(devices, "missing", "default")
	require.Error(t, err)
	require.Contains(t, err.Error(), "did not match")
}

func TestDeviceMatchesByIDAndDescription(t *testing.T) {
	dev := Device{ID: "alsa_input.usb-elgato", Description: "Elgato Wave 3 Mono"}
	require.True(t, deviceMatches(dev, "elgato"))
	require.True(t, deviceMatches(dev, "wave 3"))
	require.False(t, deviceMatches(dev, "missing"))
}

func TestListDevicesFailsWhenPulseUnavailable(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")
	_, err := ListDevices(context.Background())
	require.Error(t, err)
}

func TestSelectDeviceFailsWhenPulseUnavailable(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")
	_, err := SelectDevice(context.Background(), "default", "default")
	require.Error(t, err)
}

func TestSourceStateString(t *testing.T) {
	require.Equal(t, "running", sourceStateString(0))
	require.Equal(t, "idle", sourceStateString(1))
	require.Equal(t, "suspended", sourceStateString(2))
	require.Equal(t, "unknown(99)", sourceStateString(99))
}

func TestSourceAvailable(t *testing.T) {
	require.False(t, sourceAvailable(nil))
	require.True(t, sourceAvailable(&pulseproto.GetSourceInfoReply{})) // no ports => available

	available := &pulseproto.GetSourceInfoReply{ActivePortName: "mic"}
	setSourcePorts(t, available, []sourcePort{{name: "mic", available: 2}})
	require.True(t, sourceAvailable(available))

	notAvailable := &pulseproto.GetSourceInfoReply{ActivePortName: "mic"}
	setSourcePorts(t, notAvailable, []sourcePort{{name: "mic", available: 1}})
	require.False(t, sourceAvailable(notAvailable))
}

func TestWriterFuncDelegatesWrite(t *testing.T) {
	called := false
	writer := writerFunc(func(b []byte) (int, error) {
		called = true
		require.Equal(t, []byte{1, 2, 3}, b)
		return len(b), nil
	})

	n, err := writer.Write([]byte{1, 2, 3})
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.True(t, called)
}

func newTestSource(frameBytes int, depth int) *pulseSource {
	return &pulseSource{
		device:     Device{ID: "mic-1", Description: "Mic"},
		frameBytes: frameBytes,
		stall:      50 * time.Millisecond,
		frames:     make(chan Frame, depth),
		stopCh:     make(chan struct{}),
	}
}

func TestPulseSourceOnPCMCutsFixedFrames(t *testing.T) {
	source := newTestSource(8, 4)

	input := make([]byte, 8+5)
	for i := range input {
		input[i] = byte(i)
	}

	n, err := source.onPCM(input)
	require.NoError(t, err)
	require.Equal(t, len(input), n)

	frame, err := source.ReadFrame(context.Background())
	require.NoError(t, err)
	require.Equal(t, Frame(input[:8]), frame)

	// The 5 leftover bytes complete a frame with the next buffer.
	_, err = source.onPCM([]byte{13, 14, 15})
	require.NoError(t, err)
	frame, err = source.ReadFrame(context.Background())
	require.NoError(t, err)
	require.Equal(t, Frame{8, 9, 10, 11, 12, 13, 14, 15}, frame)
}

func TestPulseSourceOverflowDropsOldest(t *testing.T) {
	source := newTestSource(2, 2)

	_, err := source.onPCM([]byte{1, 1, 2, 2, 3, 3, 4, 4})
	require.NoError(t, err)
	require.Equal(t, int64(2), source.Dropped())

	first, err := source.ReadFrame(context.Background())
	require.NoError(t, err)
	require.Equal(t, Frame{3, 3}, first)
	second, err := source.ReadFrame(context.Background())
	require.NoError(t, err)
	require.Equal(t, Frame{4, 4}, second)
}

func TestPulseSourceReadFrameStallIsReadError(t *testing.T) {
	source := newTestSource(2, 1)

	_, err := source.ReadFrame(context.Background())
	require.ErrorIs(t, err, ErrRead)
}

func TestPulseSourceReadFrameHonorsContext(t *testing.T) {
	source := newTestSource(2, 1)
	source.stall = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := source.ReadFrame(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestPulseSourceCloseDrainsThenReportsClosed(t *testing.T) {
	source := newTestSource(2, 4)

	_, err := source.onPCM([]byte{1, 1, 9})
	require.NoError(t, err)
	require.NoError(t, source.Close())
	require.NoError(t, source.Close())

	frame, err := source.ReadFrame(context.Background())
	require.NoError(t, err)
	require.Equal(t, Frame{1, 1}, frame)

	_, err = source.ReadFrame(context.Background())
	require.ErrorIs(t, err, ErrClosed)

	n, err := source.onPCM([]byte{1, 2})
	require.Equal(t, 0, n)
	require.ErrorIs(t, err, io.EOF)
}

func TestPulseSourceDevice(t *testing.T) {
	source := newTestSource(2, 1)
	require.Equal(t, "mic-1", source.Device().ID)
	require.Equal(t, "Mic (mic-1)", DescribeDevice(source.Device()))
}

func TestStallTimeoutHasFloor(t *testing.T) {
	require.Equal(t, minStallTimeout, stallTimeout(1024))
	require.Equal(t, 4*time.Second, stallTimeout(16000))
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), Options{Backend: "alsa", FrameSize: 1024})
	require.ErrorIs(t, err, ErrDevice)
	require.Contains(t, err.Error(), "alsa")
}

func TestOpenRejectsZeroFrameSize(t *testing.T) {
	_, err := Open(context.Background(), Options{Backend: BackendPulse})
	require.ErrorIs(t, err, ErrDevice)
}

func TestOpenPulseUnavailableIsDeviceError(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")
	_, err := Open(context.Background(), Options{Backend: BackendPulse, FrameSize: 4096})
	require.ErrorIs(t, err, ErrDevice)
}

type sourcePort struct {
	name      string
	available uint32
}

func setSourcePorts(t *testing.T, reply *pulseproto.GetSourceInfoReply, ports []sourcePort) {
	t.Helper()

	sliceType := reflect.TypeOf(reply.Ports)
	sliceValue := reflect.MakeSlice(sliceType, len(ports), len(ports))

	for i, port := range ports {
		item := sliceValue.Index(i)
		item.FieldByName("Name").SetString(port.name)
		item.FieldByName("Available").SetUint(uint64(port.available))
	}

	replyValue := reflect.ValueOf(reply).Elem().FieldByName("Ports")
	replyValue.Set(sliceValue)
}
