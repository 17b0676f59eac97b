package session

import (
	"log"
	"strings"
	"sync"

	"gonum.org/v1/gonum/stat"
)

// Classifier стратегия определения ролей спикеров.
// Одна сессия использует ровно одну стратегию, смешивание путей запрещено.
type Classifier interface {
	// Observe накапливает статистику по репликам сегмента
	Observe(utterances []Utterance)
	// Assign возвращает роль для реплики
	Assign(u Utterance) Role
}

// speakerAggregate накопленная статистика по одному спикеру
type speakerAggregate struct {
	totalMs     int64
	confidences []float64
	textLens    []float64
}

// SpeakerProfile сводка по спикеру для логов и диагностики
type SpeakerProfile struct {
	Speaker        string  `json:"speaker"`
	TotalMs        int64   `json:"totalMs"`
	MeanConfidence float64 `json:"meanConfidence"`
	MeanTextLen    float64 `json:"meanTextLen"`
}

// DiarizationClassifier определяет роли по статистике диаризации.
//
// Спикер с наибольшей суммарной длительностью речи получает роль elderly,
// все остальные - young_adult. Ничья разрешается порядком первого появления.
// Известная хрупкость: если молодой участник говорит больше, роли
// перепутаются - эвристика применяется безусловно.
type DiarizationClassifier struct {
	mu     sync.Mutex
	order  []string
	agg    map[string]*speakerAggregate
	roles  map[string]Role
	frozen bool
}

// NewDiarizationClassifier создаёт классификатор для одной сессии
func NewDiarizationClassifier() *DiarizationClassifier {
	return &DiarizationClassifier{agg: make(map[string]*speakerAggregate)}
}

// Observe накапливает длительность, уверенность и длину текста по спикерам
func (c *DiarizationClassifier) Observe(utterances []Utterance) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, u := range utterances {
		a, ok := c.agg[u.Speaker]
		if !ok {
			a = &speakerAggregate{}
			c.agg[u.Speaker] = a
			c.order = append(c.order, u.Speaker)
		}
		a.totalMs += u.DurationMs()
		a.confidences = append(a.confidences, u.Confidence)
		a.textLens = append(a.textLens, float64(len([]rune(u.Text))))
	}
}

// Assign возвращает роль спикера реплики.
// Отображение спикер->роль вычисляется один раз на сессию при первом вызове
// и дальше не пересматривается. Спикеры, впервые замеченные после заморозки,
// получают young_adult.
func (c *DiarizationClassifier) Assign(u Utterance) Role {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.frozen {
		c.roles = c.resolveLocked()
		c.frozen = true
	}

	if role, ok := c.roles[u.Speaker]; ok {
		return role
	}
	return RoleYoungAdult
}

// resolveLocked строит отображение спикер->роль по накопленной статистике
func (c *DiarizationClassifier) resolveLocked() map[string]Role {
	roles := make(map[string]Role, len(c.order))

	var elderly string
	var bestMs int64 = -1
	for _, speaker := range c.order {
		// Строго больше: при равенстве побеждает первый замеченный
		if c.agg[speaker].totalMs > bestMs {
			elderly = speaker
			bestMs = c.agg[speaker].totalMs
		}
	}

	for _, speaker := range c.order {
		if speaker == elderly {
			roles[speaker] = RoleElderly
		} else {
			roles[speaker] = RoleYoungAdult
		}
	}

	for _, p := range c.profilesLocked() {
		log.Printf("Speaker %s: total=%dms, meanConf=%.3f, meanLen=%.1f -> %s",
			p.Speaker, p.TotalMs, p.MeanConfidence, p.MeanTextLen, roles[p.Speaker])
	}

	return roles
}

// Profiles возвращает сводки по всем замеченным спикерам
func (c *DiarizationClassifier) Profiles() []SpeakerProfile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.profilesLocked()
}

func (c *DiarizationClassifier) profilesLocked() []SpeakerProfile {
	profiles := make([]SpeakerProfile, 0, len(c.order))
	for _, speaker := range c.order {
		a := c.agg[speaker]
		profiles = append(profiles, SpeakerProfile{
			Speaker:        speaker,
			TotalMs:        a.totalMs,
			MeanConfidence: stat.Mean(a.confidences, nil),
			MeanTextLen:    stat.Mean(a.textLens, nil),
		})
	}
	return profiles
}

// Маркеры для эвристического пути. Продукт записывает русскоязычные семьи,
// английские маркеры оставлены для смешанной речи.
var (
	questionWords = []string{
		"что", "как", "почему", "зачем", "когда", "где", "кто", "какой", "какая", "сколько",
		"what", "how", "why", "when", "where", "who", "which",
	}
	retrospectiveMarkers = []string{
		"помню", "в молодости", "в те годы", "раньше", "когда я был", "когда я была", "в детстве",
		"i remember", "back then", "in my day", "when i was",
	}
	inquisitiveMarkers = []string{
		"расскажи", "расскажите", "а правда", "интересно", "а что было",
		"tell me", "really", "did you",
	}
)

// HeuristicClassifier запасной путь без диаризации: роли чередуются по
// репликам, начиная с young_adult, и уточняются независимыми эвристиками.
//
// Порядок приоритета:
//  1. вопросительная форма -> young_adult
//  2. длина текста выше порога -> elderly
//  3. маркеры воспоминаний -> elderly
//  4. маркеры расспросов -> young_adult
//  5. иначе чередование
type HeuristicClassifier struct {
	mu        sync.Mutex
	turnIndex int

	// LengthThreshold порог длины текста в символах (по умолчанию 200)
	LengthThreshold int
}

// NewHeuristicClassifier создаёт эвристический классификатор для одной сессии
func NewHeuristicClassifier() *HeuristicClassifier {
	return &HeuristicClassifier{LengthThreshold: 200}
}

// Observe ничего не накапливает: каждая реплика оценивается независимо
func (c *HeuristicClassifier) Observe(utterances []Utterance) {}

// Assign определяет роль реплики по эвристикам
func (c *HeuristicClassifier) Assign(u Utterance) Role {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Чередование: первая реплика сессии - young_adult
	fallback := RoleYoungAdult
	if c.turnIndex%2 == 1 {
		fallback = RoleElderly
	}
	c.turnIndex++

	text := strings.ToLower(strings.TrimSpace(u.Text))

	if isInterrogative(text) {
		return RoleYoungAdult
	}
	if len([]rune(text)) > c.LengthThreshold {
		return RoleElderly
	}
	if containsAny(text, retrospectiveMarkers) {
		return RoleElderly
	}
	if containsAny(text, inquisitiveMarkers) {
		return RoleYoungAdult
	}
	return fallback
}

// isInterrogative проверяет вопросительную форму:
// ведущее вопросительное слово или завершающий знак вопроса
func isInterrogative(text string) bool {
	if strings.HasSuffix(text, "?") {
		return true
	}
	first, _, _ := strings.Cut(text, " ")
	first = strings.Trim(first, ",.!")
	for _, w := range questionWords {
		if first == w {
			return true
		}
	}
	return false
}

func containsAny(text string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}
