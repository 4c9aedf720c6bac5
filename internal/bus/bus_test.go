package bus

import (
	"bufio"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func TestGetSockPath(t *testing.T) {
	path, err := getSockPath()
	if err != nil {
		t.Fatalf("getSockPath() error = %v", err)
	}
	if !strings.HasSuffix(path, filepath.Join("parlo", SockName)) {
		t.Errorf("getSockPath() = %q, want parlo cache suffix", path)
	}
}

func TestGetPidPath(t *testing.T) {
	path, err := getPidPath()
	if err != nil {
		t.Fatalf("getPidPath() error = %v", err)
	}
	if !strings.HasSuffix(path, filepath.Join("parlo", PidName)) {
		t.Errorf("getPidPath() = %q, want parlo cache suffix", path)
	}
}

func TestPidManagerCreateAndRemove(t *testing.T) {
	pm := &pidManager{path: filepath.Join(t.TempDir(), "sub", PidName)}

	if err := pm.create(); err != nil {
		t.Fatalf("create() error = %v", err)
	}

	data, err := os.ReadFile(pm.path)
	if err != nil {
		t.Fatalf("pid file not written: %v", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		t.Fatalf("pid file content %q is not a number", data)
	}
	if pid != os.Getpid() {
		t.Errorf("pid file holds %d, want %d", pid, os.Getpid())
	}

	if err := pm.remove(); err != nil {
		t.Fatalf("remove() error = %v", err)
	}
	if _, err := os.Stat(pm.path); !os.IsNotExist(err) {
		t.Errorf("pid file still exists after remove")
	}
}

func TestPidManagerCheckExisting(t *testing.T) {
	t.Run("no file", func(t *testing.T) {
		pm := &pidManager{path: filepath.Join(t.TempDir(), PidName)}
		if err := pm.checkExisting(); err != nil {
			t.Errorf("checkExisting() = %v, want nil", err)
		}
	})

	t.Run("running process", func(t *testing.T) {
		pm := &pidManager{path: filepath.Join(t.TempDir(), PidName)}
		if err := pm.create(); err != nil {
			t.Fatalf("create() error = %v", err)
		}
		err := pm.checkExisting()
		if err == nil {
			t.Fatal("checkExisting() = nil for our own live pid, want error")
		}
		if !strings.Contains(err.Error(), "already running") {
			t.Errorf("checkExisting() = %v, want already-running error", err)
		}
	})

	t.Run("stale pid removed", func(t *testing.T) {
		pm := &pidManager{path: filepath.Join(t.TempDir(), PidName)}
		// A pid far beyond any plausible live process.
		if err := os.WriteFile(pm.path, []byte("4194304"), 0o600); err != nil {
			t.Fatal(err)
		}
		if err := pm.checkExisting(); err != nil {
			t.Errorf("checkExisting() = %v, want stale pid cleaned up", err)
		}
		if _, err := os.Stat(pm.path); !os.IsNotExist(err) {
			t.Errorf("stale pid file not removed")
		}
	})

	t.Run("garbage pid removed", func(t *testing.T) {
		pm := &pidManager{path: filepath.Join(t.TempDir(), PidName)}
		if err := os.WriteFile(pm.path, []byte("not-a-pid"), 0o600); err != nil {
			t.Fatal(err)
		}
		if err := pm.checkExisting(); err != nil {
			t.Errorf("checkExisting() = %v, want garbage cleaned up", err)
		}
		if _, err := os.Stat(pm.path); !os.IsNotExist(err) {
			t.Errorf("garbage pid file not removed")
		}
	})
}

func TestSocketManagerListenRemovesStaleSocket(t *testing.T) {
	sm := &socketManager{path: filepath.Join(t.TempDir(), SockName)}

	first, err := sm.listen()
	if err != nil {
		t.Fatalf("listen() error = %v", err)
	}
	first.Close()

	// Simulate an unclean shutdown that left the socket file behind.
	if err := os.WriteFile(sm.path, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	second, err := sm.listen()
	if err != nil {
		t.Fatalf("listen() over stale socket error = %v", err)
	}
	second.Close()
}

func TestSocketManagerRoundTrip(t *testing.T) {
	sm := &socketManager{path: filepath.Join(t.TempDir(), SockName)}

	ln, err := sm.listen()
	if err != nil {
		t.Fatalf("listen() error = %v", err)
	}
	defer ln.Close()

	done := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			done <- "accept: " + err.Error()
			return
		}
		defer conn.Close()
		line, err := bufio.NewReader(conn).ReadString('\n')
		if err != nil {
			done <- "read: " + err.Error()
			return
		}
		conn.Write([]byte("OK\n"))
		done <- line
	}()

	conn, err := sm.dial()
	if err != nil {
		t.Fatalf("dial() error = %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte{CmdStatus, '\n'}); err != nil {
		t.Fatalf("write: %v", err)
	}
	reply, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		t.Fatalf("read reply: %v", err)
	}
	if reply != "OK\n" {
		t.Errorf("reply = %q, want OK", reply)
	}

	got := <-done
	if got != string(CmdStatus)+"\n" {
		t.Errorf("daemon side received %q, want status byte", got)
	}
}

func TestCommandFraming(t *testing.T) {
	tests := []struct {
		name    string
		cmd     byte
		payload string
		want    string
	}{
		{"bare command", CmdListen, "", "l\n"},
		{"direction payload", CmdDirection, "b-to-a", "d b-to-a\n"},
		{"width payload", CmdWidth, "60", "w 60\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), SockName)
			ln, err := net.Listen("unix", path)
			if err != nil {
				t.Fatal(err)
			}
			defer ln.Close()

			received := make(chan string, 1)
			go func() {
				conn, err := ln.Accept()
				if err != nil {
					return
				}
				defer conn.Close()
				line, _ := bufio.NewReader(conn).ReadString('\n')
				conn.Write([]byte("OK\n"))
				received <- line
			}()

			conn, err := net.Dial("unix", path)
			if err != nil {
				t.Fatal(err)
			}
			defer conn.Close()

			msg := []byte{tt.cmd}
			if tt.payload != "" {
				msg = append(msg, ' ')
				msg = append(msg, tt.payload...)
			}
			msg = append(msg, '\n')
			if _, err := conn.Write(msg); err != nil {
				t.Fatal(err)
			}
			if _, err := bufio.NewReader(conn).ReadString('\n'); err != nil {
				t.Fatal(err)
			}

			if got := <-received; got != tt.want {
				t.Errorf("wire frame = %q, want %q", got, tt.want)
			}
		})
	}
}
