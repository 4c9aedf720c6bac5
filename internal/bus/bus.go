// Package bus is the daemon's control plane: a unix socket carrying
// single-byte commands with optional payloads, and a pid file guarding
// against double starts.
package bus

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

const SockName = "control.sock"
const PidName = "parlo.pid"
const ProtoVer = "0.1"

// Command bytes understood by the daemon. Payload commands carry one
// space-separated argument after the byte.
const (
	CmdListen    byte = 'l'
	CmdStop      byte = 'x'
	CmdStatus    byte = 's'
	CmdClear     byte = 'c'
	CmdVoice     byte = 'v'
	CmdSubtitle  byte = 'b'
	CmdDirection byte = 'd' // payload: a-to-b | b-to-a | auto
	CmdWidth     byte = 'w' // payload: max characters per subtitle line
	CmdVersion   byte = 'p'
	CmdQuit      byte = 'q'
)

// ~/.cache/parlo/control.sock
func SockPath() (string, error) {
	return getSockPath()
}

// ~/.cache/parlo/parlo.pid
func PidPath() (string, error) {
	return getPidPath()
}

func getSockPath() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "parlo", SockName), nil
}

func getPidPath() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "parlo", PidName), nil
}

type socketManager struct {
	path string
}

func (s *socketManager) listen() (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return nil, err
	}
	_ = os.Remove(s.path) // stale socket from last run
	return net.Listen("unix", s.path)
}

func (s *socketManager) dial() (net.Conn, error) {
	return net.Dial("unix", s.path)
}

type pidManager struct {
	path string
}

func (p *pidManager) create() error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(p.path, []byte(strconv.Itoa(os.Getpid())), 0o600)
}

func (p *pidManager) remove() error {
	return os.Remove(p.path)
}

// checkExisting errors if another daemon holds the pid file; stale or
// malformed files are cleaned up silently.
func (p *pidManager) checkExisting() error {
	pidData, err := os.ReadFile(p.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(pidData)))
	if err != nil {
		_ = p.remove()
		return nil
	}

	if !p.isProcessAlive(pid) {
		_ = p.remove()
		return nil
	}

	return fmt.Errorf("daemon already running with PID %d", pid)
}

func (p *pidManager) isProcessAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

func defaultSocketManager() (*socketManager, error) {
	path, err := getSockPath()
	if err != nil {
		return nil, err
	}
	return &socketManager{path: path}, nil
}

func defaultPidManager() (*pidManager, error) {
	path, err := getPidPath()
	if err != nil {
		return nil, err
	}
	return &pidManager{path: path}, nil
}

func Listen() (net.Listener, error) {
	sm, err := defaultSocketManager()
	if err != nil {
		return nil, err
	}
	return sm.listen()
}

func Dial() (net.Conn, error) {
	sm, err := defaultSocketManager()
	if err != nil {
		return nil, err
	}
	return sm.dial()
}

// SendCommand writes one command (with optional payload) and returns the
// daemon's single-line reply.
func SendCommand(cmd byte, payload string) (string, error) {
	c, err := Dial()
	if err != nil {
		return "", err
	}
	defer c.Close()

	msg := []byte{cmd}
	if payload != "" {
		msg = append(msg, ' ')
		msg = append(msg, payload...)
	}
	msg = append(msg, '\n')

	if _, err := c.Write(msg); err != nil {
		return "", err
	}

	resp, err := bufio.NewReader(c).ReadString('\n')
	return resp, err
}

func CheckExistingDaemon() error {
	pm, err := defaultPidManager()
	if err != nil {
		return err
	}
	return pm.checkExisting()
}

func CreatePidFile() error {
	pm, err := defaultPidManager()
	if err != nil {
		return err
	}
	return pm.create()
}

func RemovePidFile() error {
	pm, err := defaultPidManager()
	if err != nil {
		return err
	}
	return pm.remove()
}
