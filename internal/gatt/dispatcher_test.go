package gatt_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"qardioctl/internal/ble"
	"qardioctl/internal/ble/bletest"
	"qardioctl/internal/gatt"
)

func dispatcherFixture(t *testing.T, queueSize int) (*gatt.Dispatcher, *gatt.Catalog, *bletest.Characteristic) {
	t.Helper()
	tc := bletest.NewCharacteristic("00002a35-0000-1000-8000-00805f9b34fb", ble.PropertyNotify|ble.PropertyIndicate)
	cat, err := gatt.Discover(bletest.NewConnection(bletest.Svc("1810", tc)))
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	return gatt.NewDispatcher(queueSize), cat, tc
}

func TestSubscribeDeliversInOrder(t *testing.T) {
	d, cat, tc := dispatcherFixture(t, 0)
	ch, _ := cat.Characteristic("2a35")

	sub, err := d.Subscribe(ch)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer d.Unsubscribe(sub)

	for i := 0; i < 5; i++ {
		tc.Notify([]byte{byte(i)})
	}

	var lastSeq uint64
	for i := 0; i < 5; i++ {
		select {
		case frame := <-sub.Frames():
			if frame.Data[0] != byte(i) {
				t.Errorf("frame %d payload = %d, arrival order must be preserved", i, frame.Data[0])
			}
			if frame.Seq <= lastSeq {
				t.Errorf("frame %d seq = %d, want > %d", i, frame.Seq, lastSeq)
			}
			lastSeq = frame.Seq
		case <-time.After(time.Second):
			t.Fatal("frame not delivered")
		}
	}
}

func TestSubscribeTwiceFails(t *testing.T) {
	d, cat, _ := dispatcherFixture(t, 0)
	ch, _ := cat.Characteristic("2a35")

	sub, err := d.Subscribe(ch)
	if err != nil {
		t.Fatalf("first Subscribe() error = %v", err)
	}
	defer d.Unsubscribe(sub)

	if _, err := d.Subscribe(ch); !errors.Is(err, gatt.ErrAlreadySubscribed) {
		t.Errorf("second Subscribe() error = %v, want ErrAlreadySubscribed", err)
	}
}

func TestSubscribeNotNotifiable(t *testing.T) {
	d := gatt.NewDispatcher(0)
	tc := bletest.NewCharacteristic("00002a49-0000-1000-8000-00805f9b34fb", ble.PropertyRead)
	cat, err := gatt.Discover(bletest.NewConnection(bletest.Svc("1810", tc)))
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	ch, _ := cat.Characteristic("2a49")

	if _, err := d.Subscribe(ch); !errors.Is(err, gatt.ErrNotNotifiable) {
		t.Errorf("Subscribe() error = %v, want ErrNotNotifiable", err)
	}
}

func TestUnsubscribeIdempotent(t *testing.T) {
	d, cat, tc := dispatcherFixture(t, 0)
	ch, _ := cat.Characteristic("2a35")

	sub, err := d.Subscribe(ch)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	if err := d.Unsubscribe(sub); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	if tc.Notifying() {
		t.Error("transport notifications still enabled after Unsubscribe")
	}
	if err := d.Unsubscribe(sub); err != nil {
		t.Errorf("second Unsubscribe() error = %v, want nil", err)
	}
	if err := d.Unsubscribe(nil); err != nil {
		t.Errorf("Unsubscribe(nil) error = %v, want nil", err)
	}
}

func TestResubscribeKeepsSequenceMonotonic(t *testing.T) {
	d, cat, tc := dispatcherFixture(t, 0)
	ch, _ := cat.Characteristic("2a35")

	sub, _ := d.Subscribe(ch)
	tc.Notify([]byte{1})
	first := <-sub.Frames()
	d.Unsubscribe(sub)

	sub2, err := d.Subscribe(ch)
	if err != nil {
		t.Fatalf("resubscribe error = %v", err)
	}
	defer d.Unsubscribe(sub2)
	tc.Notify([]byte{2})
	second := <-sub2.Frames()

	if second.Seq <= first.Seq {
		t.Errorf("seq after resubscribe = %d, want > %d", second.Seq, first.Seq)
	}
}

func TestOverrunReportedNotSilent(t *testing.T) {
	d, cat, tc := dispatcherFixture(t, 2)
	ch, _ := cat.Characteristic("2a35")

	sub, err := d.Subscribe(ch)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	// Nobody reading: fill the queue and push one more.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 3; i++ {
			tc.Notify([]byte{byte(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked the transport callback")
	}

	// Drain: the channel must be closed after the overrun.
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-sub.Frames():
			if !ok {
				if !errors.Is(sub.Err(), gatt.ErrOverrun) {
					t.Errorf("Err() = %v, want ErrOverrun", sub.Err())
				}
				return
			}
		case <-deadline:
			t.Fatal("subscription channel never closed after overrun")
		}
	}
}

func TestIndependentCharacteristics(t *testing.T) {
	meas := bletest.NewCharacteristic("00002a35-0000-1000-8000-00805f9b34fb", ble.PropertyNotify)
	ctrl := bletest.NewCharacteristic("583cb5b3-875d-40ed-9098-c39eb0c1983d", ble.PropertyWrite|ble.PropertyNotify)
	cat, err := gatt.Discover(bletest.NewConnection(bletest.Svc("1810", meas, ctrl)))
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	d := gatt.NewDispatcher(0)

	chMeas, _ := cat.Characteristic("2a35")
	chCtrl, _ := cat.Characteristic("583cb5b3-875d-40ed-9098-c39eb0c1983d")

	subMeas, err := d.Subscribe(chMeas)
	if err != nil {
		t.Fatalf("Subscribe(meas) error = %v", err)
	}
	subCtrl, err := d.Subscribe(chCtrl)
	if err != nil {
		t.Fatalf("Subscribe(ctrl) error = %v", err)
	}
	defer d.Unsubscribe(subMeas)
	defer d.Unsubscribe(subCtrl)

	ctrl.Notify([]byte{0xF2, 0x00})
	meas.Notify([]byte{0x00, 0x78, 0x00, 0x50, 0x00, 0x5d, 0x00})

	frame := <-subCtrl.Frames()
	if frame.UUID != chCtrl.UUID {
		t.Errorf("ctrl frame UUID = %s", frame.UUID)
	}
	frame = <-subMeas.Frames()
	if frame.UUID != chMeas.UUID {
		t.Errorf("meas frame UUID = %s", frame.UUID)
	}
}

func TestSubscribeTransportFailure(t *testing.T) {
	d, cat, tc := dispatcherFixture(t, 0)
	ch, _ := cat.Characteristic("2a35")
	tc.FailSubscribes(fmt.Errorf("cccd write failed"))

	if _, err := d.Subscribe(ch); err == nil {
		t.Fatal("Subscribe() should propagate transport failure")
	}

	// The slot must be free again after the failure.
	tc.FailSubscribes(nil)
	sub, err := d.Subscribe(ch)
	if err != nil {
		t.Errorf("Subscribe() after transport failure error = %v", err)
	}
	d.Unsubscribe(sub)
}
