package svgpath

import (
	"errors"
	"fmt"
	"strconv"
	"unicode"
)

var (
	errParamMismatch  = errors.New("param mismatch")
	errCommandUnknown = errors.New("unknown command")

	// ErrArcUnsupported is returned when path data contains
	// an arc command but no ArcExpander is provided.
	ErrArcUnsupported = errors.New("arc command without arc expander")
)

// pathCursor is used while parsing path data
type pathCursor struct {
	path                   Path
	placeX, placeY         float64
	cntlPtX, cntlPtY       float64
	pathStartX, pathStartY float64
	points                 []float64
	lastKey                uint8
	inPath                 bool
	arcs                   ArcExpander
}

// ParsePathData translates the content of a 'd' attribute
// into a Path. Quadratic curves are elevated to cubic ones,
// and arcs are delegated to `arcs`. If `arcs` is nil,
// an arc command triggers ErrArcUnsupported.
// On any error, the returned path is nil.
func ParsePathData(d string, arcs ArcExpander) (Path, error) {
	c := pathCursor{arcs: arcs}
	if err := c.compilePath(d); err != nil {
		return nil, err
	}
	return c.path, nil
}

// ParseNumbers reads a list of numbers separated by
// whitespace and/or commas, as found in 'points' or 'viewBox'.
func ParseNumbers(s string) ([]float64, error) {
	var c pathCursor
	if err := c.getPoints(s, false); err != nil {
		return nil, err
	}
	return c.points, nil
}

func reflect(px, py, rx, ry float64) (x, y float64) {
	return px*2 - rx, py*2 - ry
}

func (c *pathCursor) init() {
	c.placeX = 0.0
	c.placeY = 0.0
	c.points = c.points[0:0]
	c.lastKey = ' '
	c.path.Clear()
	c.inPath = false
}

func (c *pathCursor) valsToAbs(last float64) {
	for i := 0; i < len(c.points); i++ {
		last += c.points[i]
		c.points[i] = last
	}
}

func (c *pathCursor) pointsToAbs(sz int) {
	lastX := c.placeX
	lastY := c.placeY
	for j := 0; j < len(c.points); j += sz {
		for i := 0; i < sz; i += 2 {
			c.points[i+j] += lastX
			c.points[i+1+j] += lastY
		}
		lastX = c.points[(j+sz)-2]
		lastY = c.points[(j+sz)-1]
	}
}

func (c *pathCursor) hasSetsOrMore(sz int, rel bool) bool {
	if !(len(c.points) >= sz && len(c.points)%sz == 0) {
		return false
	}
	if rel {
		c.pointsToAbs(sz)
	}
	return true
}

// skipCommaWhitespace returns the index of the first
// character which is neither a space nor a comma
func skipCommaWhitespace(s string) int {
	i := 0
	for i < len(s) && (s[i] == ',' || s[i] == ' ' || s[i] == '\n' || s[i] == '\r' || s[i] == '\t') {
		i++
	}
	return i
}

// scanNumber returns the length of the number starting s,
// or 0 if s does not start with a number.
// Note that "0.5.5" is read as "0.5" followed by ".5"
func scanNumber(s string) int {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := 0
	for i < len(s) && '0' <= s[i] && s[i] <= '9' {
		i++
		digits++
	}
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && '0' <= s[i] && s[i] <= '9' {
			i++
			digits++
		}
	}
	if digits == 0 {
		return 0
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		if j < len(s) && '0' <= s[j] && s[j] <= '9' {
			for j < len(s) && '0' <= s[j] && s[j] <= '9' {
				j++
			}
			i = j
		}
	}
	return i
}

// getPoints reads a set of floating point values from the SVG format number string,
// and add them to the cursor's points slice.
// For arcs, the large-arc and sweep flags may be written without separators.
func (c *pathCursor) getPoints(dataPoints string, arc bool) error {
	c.points = c.points[0:0]
	s := dataPoints
	for {
		s = s[skipCommaWhitespace(s):]
		if s == "" {
			return nil
		}
		if k := len(c.points) % 7; arc && (k == 3 || k == 4) {
			switch s[0] {
			case '0':
				c.points = append(c.points, 0)
			case '1':
				c.points = append(c.points, 1)
			default:
				return fmt.Errorf("invalid arc flag %q: %w", s[0], errParamMismatch)
			}
			s = s[1:]
			continue
		}
		n := scanNumber(s)
		if n == 0 {
			return fmt.Errorf("invalid number in %q: %w", dataPoints, errParamMismatch)
		}
		f, err := strconv.ParseFloat(s[:n], 64)
		if err != nil {
			return err
		}
		c.points = append(c.points, f)
		s = s[n:]
	}
}

func (c *pathCursor) reflectControlQuad() {
	switch c.lastKey {
	case 'q', 'Q', 'T', 't':
		c.cntlPtX, c.cntlPtY = reflect(c.placeX, c.placeY, c.cntlPtX, c.cntlPtY)
	default:
		c.cntlPtX, c.cntlPtY = c.placeX, c.placeY
	}
}

func (c *pathCursor) reflectControlCube() {
	switch c.lastKey {
	case 'c', 'C', 's', 'S':
		c.cntlPtX, c.cntlPtY = reflect(c.placeX, c.placeY, c.cntlPtX, c.cntlPtY)
	default:
		c.cntlPtX, c.cntlPtY = c.placeX, c.placeY
	}
}

// ensureStart opens a new sub-path at the current point,
// for drawing commands following a 'Z'.
func (c *pathCursor) ensureStart() {
	if !c.inPath {
		c.pathStartX, c.pathStartY = c.placeX, c.placeY
		c.path.Start(Point{c.placeX, c.placeY})
		c.inPath = true
	}
}

func (c *pathCursor) place() Point { return Point{c.placeX, c.placeY} }

// addSeg decodes an SVG seqment string into the path
func (c *pathCursor) addSeg(segString string) error {
	k := segString[0]
	// Parse the string describing the numeric points in SVG format
	if err := c.getPoints(segString[1:], k == 'a' || k == 'A'); err != nil {
		return err
	}
	l := len(c.points)
	rel := false
	switch k {
	case 'z', 'Z':
		if len(c.points) != 0 {
			return errParamMismatch
		}
		if c.inPath {
			c.path.Stop(true)
			c.placeX = c.pathStartX
			c.placeY = c.pathStartY
			c.inPath = false
		}
	case 'm':
		rel = true
		fallthrough
	case 'M':
		if !c.hasSetsOrMore(2, rel) {
			return errParamMismatch
		}
		c.pathStartX, c.pathStartY = c.points[0], c.points[1]
		c.inPath = true
		c.path.Start(Point{c.pathStartX, c.pathStartY})
		for i := 2; i < l-1; i += 2 {
			c.path.Line(Point{c.points[i], c.points[i+1]})
		}
		c.placeX = c.points[l-2]
		c.placeY = c.points[l-1]
	case 'l':
		rel = true
		fallthrough
	case 'L':
		if !c.hasSetsOrMore(2, rel) {
			return errParamMismatch
		}
		c.ensureStart()
		for i := 0; i < l-1; i += 2 {
			c.path.Line(Point{c.points[i], c.points[i+1]})
		}
		c.placeX = c.points[l-2]
		c.placeY = c.points[l-1]
	case 'v':
		c.valsToAbs(c.placeY)
		fallthrough
	case 'V':
		if !c.hasSetsOrMore(1, false) {
			return errParamMismatch
		}
		c.ensureStart()
		for _, p := range c.points {
			c.path.Line(Point{c.placeX, p})
		}
		c.placeY = c.points[l-1]
	case 'h':
		c.valsToAbs(c.placeX)
		fallthrough
	case 'H':
		if !c.hasSetsOrMore(1, false) {
			return errParamMismatch
		}
		c.ensureStart()
		for _, p := range c.points {
			c.path.Line(Point{p, c.placeY})
		}
		c.placeX = c.points[l-1]
	case 'q':
		rel = true
		fallthrough
	case 'Q':
		if !c.hasSetsOrMore(4, rel) {
			return errParamMismatch
		}
		c.ensureStart()
		for i := 0; i < l-3; i += 4 {
			c.path.QuadBezier(c.place(), Point{c.points[i], c.points[i+1]}, Point{c.points[i+2], c.points[i+3]})
			c.placeX, c.placeY = c.points[i+2], c.points[i+3]
		}
		c.cntlPtX, c.cntlPtY = c.points[l-4], c.points[l-3]
	case 't':
		rel = true
		fallthrough
	case 'T':
		if !c.hasSetsOrMore(2, rel) {
			return errParamMismatch
		}
		c.ensureStart()
		for i := 0; i < l-1; i += 2 {
			c.reflectControlQuad()
			c.path.QuadBezier(c.place(), Point{c.cntlPtX, c.cntlPtY}, Point{c.points[i], c.points[i+1]})
			c.lastKey = k
			c.placeX = c.points[i]
			c.placeY = c.points[i+1]
		}
	case 'c':
		rel = true
		fallthrough
	case 'C':
		if !c.hasSetsOrMore(6, rel) {
			return errParamMismatch
		}
		c.ensureStart()
		for i := 0; i < l-5; i += 6 {
			c.path.CubeBezier(Point{c.points[i], c.points[i+1]},
				Point{c.points[i+2], c.points[i+3]},
				Point{c.points[i+4], c.points[i+5]})
		}
		c.cntlPtX, c.cntlPtY = c.points[l-4], c.points[l-3]
		c.placeX = c.points[l-2]
		c.placeY = c.points[l-1]
	case 's':
		rel = true
		fallthrough
	case 'S':
		if !c.hasSetsOrMore(4, rel) {
			return errParamMismatch
		}
		c.ensureStart()
		for i := 0; i < l-3; i += 4 {
			c.reflectControlCube()
			c.path.CubeBezier(Point{c.cntlPtX, c.cntlPtY},
				Point{c.points[i], c.points[i+1]},
				Point{c.points[i+2], c.points[i+3]})
			c.lastKey = k
			c.cntlPtX, c.cntlPtY = c.points[i], c.points[i+1]
			c.placeX = c.points[i+2]
			c.placeY = c.points[i+3]
		}
	case 'a', 'A':
		if !c.hasSetsOrMore(7, false) {
			return errParamMismatch
		}
		if c.arcs == nil {
			return ErrArcUnsupported
		}
		c.ensureStart()
		for i := 0; i < l-6; i += 7 {
			if k == 'a' {
				c.points[i+5] += c.placeX
				c.points[i+6] += c.placeY
			}
			to := Point{c.points[i+5], c.points[i+6]}
			c.arcs.ExpandArc(&c.path, c.place(), c.points[i], c.points[i+1], c.points[i+2],
				c.points[i+3] != 0, c.points[i+4] != 0, to)
			c.placeX, c.placeY = to.X, to.Y
		}
	default:
		return fmt.Errorf("%w %q", errCommandUnknown, k)
	}
	// So we know how to extend some segment types
	c.lastKey = k
	return nil
}

// compilePath translates the svgPath description string into a path.
// The resulting path element is stored in the pathCursor.
func (c *pathCursor) compilePath(svgPath string) error {
	c.init()
	lastIndex := -1
	for i, v := range svgPath {
		if unicode.IsLetter(v) && v != 'e' && v != 'E' {
			if lastIndex != -1 {
				if err := c.addSeg(svgPath[lastIndex:i]); err != nil {
					return err
				}
			} else if s := svgPath[:i]; s[skipCommaWhitespace(s):] != "" {
				// data must start with a command
				return errParamMismatch
			}
			lastIndex = i
		}
	}
	if lastIndex != -1 {
		if err := c.addSeg(svgPath[lastIndex:]); err != nil {
			return err
		}
	}
	return nil
}
