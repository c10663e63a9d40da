package buffer

import (
	"strings"
	"sync"
	"time"
)

// buffer guarda mensagens de um telefone, um timer e uma "geração" para
// invalidar timers antigos. Também guarda o nome do remetente visto por
// último.
type buffer struct {
	mu    sync.Mutex
	msgs  []string
	name  string
	timer *time.Timer
	gen   uint64
	dead  bool // removido do mapa; não aceita mais mensagens
}

// Manager agrega mensagens por telefone (debounce deslizante) e dispara o
// flush após o timeout chamando flushFunc(phone, name, combined). Clientes de
// WhatsApp costumam quebrar uma frase em várias mensagens; o flush junta tudo
// em um único turno do usuário.
type Manager struct {
	mu        sync.Mutex
	buffers   map[string]*buffer
	timeout   time.Duration
	flushFunc func(phone, name, combined string)
}

func NewManager(timeout time.Duration, flushFunc func(phone, name, combined string)) *Manager {
	return &Manager{
		buffers:   make(map[string]*buffer),
		timeout:   timeout,
		flushFunc: flushFunc,
	}
}

// AddMessage adiciona a mensagem ao buffer do telefone e reinicia o timer.
// Mensagens consecutivas iguais são ignoradas.
func (m *Manager) AddMessage(phone, name, text string) {
	normalized := strings.TrimSpace(text)
	if normalized == "" {
		return
	}

	for {
		m.mu.Lock()
		buf, ok := m.buffers[phone]
		if !ok {
			buf = &buffer{}
			m.buffers[phone] = buf
		}
		m.mu.Unlock()

		buf.mu.Lock()
		// o flush pode ter removido este buffer entre os dois locks;
		// nesse caso o mapa já não o contém e é preciso pegar um novo
		if buf.dead {
			buf.mu.Unlock()
			continue
		}

		// dedupe consecutivo
		n := len(buf.msgs)
		if n == 0 || buf.msgs[n-1] != normalized {
			buf.msgs = append(buf.msgs, normalized)
		}
		if name != "" {
			buf.name = name
		}

		// invalida timer anterior (se existir) e cria um novo com nova "geração"
		buf.gen++
		currentGen := buf.gen
		if buf.timer != nil {
			buf.timer.Stop()
		}
		buf.timer = time.AfterFunc(m.timeout, func() { m.flushIfCurrent(phone, currentGen) })
		buf.mu.Unlock()
		return
	}
}

// flushIfCurrent só executa o flush se a geração do timer ainda for a atual.
// Evita flush duplo quando uma mensagem chega no fim da janela.
func (m *Manager) flushIfCurrent(phone string, genAtSchedule uint64) {
	m.mu.Lock()
	buf, ok := m.buffers[phone]
	m.mu.Unlock()
	if !ok {
		return
	}

	buf.mu.Lock()
	if genAtSchedule != buf.gen {
		buf.mu.Unlock()
		return
	}
	msgs := buf.msgs
	name := buf.name
	buf.msgs = nil
	buf.name = ""
	buf.timer = nil
	buf.mu.Unlock()

	if len(msgs) > 0 {
		m.flushFunc(phone, name, strings.Join(msgs, "\n"))
	}

	// Remove o buffer apenas se nenhuma mensagem chegou durante o flush:
	// uma geração nova tem timer próprio e precisa da entrada no mapa.
	m.mu.Lock()
	buf.mu.Lock()
	if buf.gen == genAtSchedule && len(buf.msgs) == 0 {
		buf.dead = true
		delete(m.buffers, phone)
	}
	buf.mu.Unlock()
	m.mu.Unlock()
}
