package hrm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"

	"github.com/lowaak/shuttle-run/shuttle-run-app/internal/events"
	"github.com/lowaak/shuttle-run/shuttle-run-app/internal/safego"
)

// Verify BLEMonitor implements Monitor
var _ Monitor = (*BLEMonitor)(nil)

// BLEMonitor scans for the assigned heart-rate straps, connects to each and
// subscribes to Heart Rate Measurement notifications.
type BLEMonitor struct {
	adapter     *bluetooth.Adapter
	assignments Assignments
	scanTimeout time.Duration
	logger      *log.Logger

	readings *events.Broadcaster[Reading]

	mu        sync.Mutex
	connected map[string]bluetooth.Device

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

func NewBLEMonitor(adapter *bluetooth.Adapter, assignments Assignments, logger *log.Logger, scanTimeout ...time.Duration) *BLEMonitor {
	if adapter == nil {
		panic("BLEMonitor: adapter cannot be nil")
	}
	if logger == nil {
		panic("BLEMonitor: logger cannot be nil")
	}
	timeout := 20 * time.Second
	if len(scanTimeout) > 0 && scanTimeout[0] > 0 {
		timeout = scanTimeout[0]
	}
	return &BLEMonitor{
		adapter:     adapter,
		assignments: assignments,
		scanTimeout: timeout,
		logger:      logger,
		readings:    events.NewBroadcaster[Reading](false),
		connected:   make(map[string]bluetooth.Device),
	}
}

// Start enables the adapter and connects to the assigned monitors in the
// background. Monitors not found within the scan timeout are logged and skipped.
func (m *BLEMonitor) Start(ctx context.Context) error {
	if len(m.assignments) == 0 {
		return errors.New("hrm: no monitors assigned")
	}

	m.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		addr := device.Address.String()
		if connected {
			m.logger.Printf("HRM: Device connected: %s", addr)
			return
		}
		m.logger.Printf("HRM: Device disconnected: %s", addr)
		m.mu.Lock()
		delete(m.connected, normalizeAddress(addr))
		m.mu.Unlock()
	})
	if err := m.adapter.Enable(); err != nil {
		return fmt.Errorf("hrm: enable adapter: %w", err)
	}

	m.ctx, m.cancel = context.WithCancel(ctx)
	m.wg.Add(1)
	safego.Go(m.logger, "BLEMonitor.connectAll", func() {
		defer m.wg.Done()
		m.connectAll(m.ctx)
	})
	return nil
}

func (m *BLEMonitor) ListenToReadings(ch chan Reading) func() {
	return m.readings.Listen(ch)
}

// Connected returns how many monitors are currently subscribed.
func (m *BLEMonitor) Connected() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.connected)
}

func (m *BLEMonitor) connectAll(ctx context.Context) {
	found := m.scan(ctx)
	for addr, result := range found {
		if ctx.Err() != nil {
			return
		}
		if err := m.connect(result); err != nil {
			m.logger.Printf("HRM: Failed to connect to %s: %v", addr, err)
		}
	}
}

// scan returns the scan results of every assigned monitor seen before the
// timeout, stopping early once all were found.
func (m *BLEMonitor) scan(ctx context.Context) map[string]bluetooth.ScanResult {
	found := make(map[string]bluetooth.ScanResult)
	var mu sync.Mutex

	scanCtx, cancel := context.WithTimeout(ctx, m.scanTimeout)
	defer cancel()

	m.wg.Add(1)
	safego.Go(m.logger, "BLEMonitor.stopScan", func() {
		defer m.wg.Done()
		<-scanCtx.Done()
		if err := m.adapter.StopScan(); err != nil {
			m.logger.Printf("HRM: Error stopping scan: %v", err)
		}
	})

	m.logger.Printf("HRM: Scanning for %d monitors", len(m.assignments))
	err := m.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
		if !result.HasServiceUUID(bluetooth.ServiceUUIDHeartRate) {
			return
		}
		addr := normalizeAddress(result.Address.String())
		player, ok := m.assignments[addr]
		if !ok {
			return
		}

		mu.Lock()
		defer mu.Unlock()
		if _, seen := found[addr]; seen {
			return
		}
		found[addr] = result
		m.logger.Printf("HRM: Found %s (%s) for player %d [RSSI: %d]", result.LocalName(), addr, player, result.RSSI)
		if len(found) == len(m.assignments) {
			cancel()
		}
	})
	if err != nil {
		m.logger.Printf("HRM: Scan error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	for _, addr := range m.assignments.Addresses() {
		if _, ok := found[addr]; !ok {
			m.logger.Printf("HRM: Monitor %s for player %d not found", addr, m.assignments[addr])
		}
	}
	return found
}

func (m *BLEMonitor) connect(result bluetooth.ScanResult) error {
	addr := normalizeAddress(result.Address.String())
	player := m.assignments[addr]

	device, err := m.adapter.Connect(result.Address, bluetooth.ConnectionParams{})
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	// Discover everything at once; discovering single services repeatedly
	// interrupts notifications on some stacks.
	services, err := device.DiscoverServices(nil)
	if err != nil {
		device.Disconnect()
		return fmt.Errorf("discover services: %w", err)
	}
	var hr *bluetooth.DeviceService
	for i := range services {
		if services[i].UUID() == bluetooth.ServiceUUIDHeartRate {
			hr = &services[i]
			break
		}
	}
	if hr == nil {
		device.Disconnect()
		return errors.New("heart rate service not found on device")
	}

	chars, err := hr.DiscoverCharacteristics(nil)
	if err != nil {
		device.Disconnect()
		return fmt.Errorf("discover characteristics: %w", err)
	}
	var measurement *bluetooth.DeviceCharacteristic
	for i := range chars {
		if chars[i].UUID() == bluetooth.CharacteristicUUIDHeartRateMeasurement {
			measurement = &chars[i]
			break
		}
	}
	if measurement == nil {
		device.Disconnect()
		return errors.New("heart rate measurement characteristic not found")
	}

	err = measurement.EnableNotifications(func(buf []byte) {
		bpm, err := ParseHeartRate(buf)
		if err != nil {
			m.logger.Printf("HRM: %s: %v", addr, err)
			return
		}
		m.readings.Notify(Reading{PlayerID: player, Address: addr, BPM: bpm, At: time.Now()})
	})
	if err != nil {
		device.Disconnect()
		return fmt.Errorf("enable notifications: %w", err)
	}

	m.mu.Lock()
	m.connected[addr] = device
	m.mu.Unlock()
	m.logger.Printf("HRM: Subscribed to %s for player %d", addr, player)
	return nil
}

// Shutdown disconnects every monitor and waits for background work.
func (m *BLEMonitor) Shutdown() {
	m.once.Do(func() {
		m.logger.Println("HRM: Shutting down")
		if m.cancel != nil {
			m.cancel()
		}
		m.wg.Wait()

		m.mu.Lock()
		devices := make(map[string]bluetooth.Device, len(m.connected))
		for addr, d := range m.connected {
			devices[addr] = d
		}
		m.connected = make(map[string]bluetooth.Device)
		m.mu.Unlock()

		for addr, d := range devices {
			if err := d.Disconnect(); err != nil {
				m.logger.Printf("HRM: Error disconnecting from %s: %v", addr, err)
			}
		}
		m.logger.Println("HRM: Shutdown complete")
	})
}
