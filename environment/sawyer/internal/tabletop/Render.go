package tabletop

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sort"
	"sync"

	"github.com/fogleman/gg"
	"github.com/samuelfneumann/goalenv/environment/geometry"
	"gonum.org/v1/gonum/spatial/r3"
	"gorgonia.org/tensor"
)

const (
	tableTiles     = 8
	cylinderFacets = 16
)

var (
	tableLow  = r3.Vec{X: -0.6, Y: 0.3}
	tableHigh = r3.Vec{X: 0.6, Y: 1.1}
	light     = geometry.Unit(r3.Vec{X: 0.3, Y: -0.4, Z: 1})
)

// RenderContext owns the drawing surface of a Tabletop. A caller must
// make the context current before drawing and release it afterwards;
// renders from different goroutines therefore never share the surface.
type RenderContext struct {
	mu       sync.Mutex
	dc       *gg.Context
	released bool
}

// MakeCurrent acquires the context, binding a drawing surface of the
// given size. The returned function releases the context.
func (r *RenderContext) MakeCurrent(width, height int) (*gg.Context, func(),
	error) {
	r.mu.Lock()
	if r.released {
		r.mu.Unlock()
		return nil, nil, ErrNoRenderer
	}
	if r.dc == nil || r.dc.Width() != width || r.dc.Height() != height {
		r.dc = gg.NewContext(width, height)
	}
	return r.dc, r.mu.Unlock, nil
}

// Release frees the drawing surface. Later calls to MakeCurrent fail.
func (r *RenderContext) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dc = nil
	r.released = true
}

// face is a planar polygon with an outward normal. A zero normal marks
// a two-sided face.
type face struct {
	pts    []r3.Vec
	normal r3.Vec
	colour color.RGBA
}

// disc is a sphere drawn as a filled circle
type disc struct {
	centre r3.Vec
	radius float64
	colour color.RGBA
}

// drawable is a projected primitive ready to be painted
type drawable struct {
	depth  float64
	pts    [][2]float64
	circle bool
	radius float64
	colour color.RGBA
}

// Render draws the scene from the named camera into a height x width x 3
// uint8 tensor. The render context is made current before drawing.
func (t *Tabletop) Render(camera string, height, width int) (*tensor.Dense,
	error) {
	if height <= 0 || width <= 0 {
		return nil, fmt.Errorf("render: invalid resolution (%v, %v)", height,
			width)
	}
	c, ok := t.cameras[camera]
	if !ok {
		return nil, fmt.Errorf("render: %q: %w", camera, ErrUnknownCamera)
	}

	dc, release, err := t.context.MakeCurrent(width, height)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	defer release()

	p := newProjector(c, t.HandPos(), height, width)
	dc.SetColor(skyColour)
	dc.Clear()

	// The table is below everything else, so it is painted first
	for _, f := range tableFaces() {
		if d, ok := p.projectFace(f); ok {
			paint(dc, d)
		}
	}

	var items []drawable
	for _, f := range t.faces() {
		if d, ok := p.projectFace(f); ok {
			items = append(items, d)
		}
	}
	if t.goal.visible {
		if d, ok := p.projectDisc(disc{t.goal.pos, t.goal.radius,
			t.goal.colour}); ok {
			items = append(items, d)
		}
	}

	// Painter's algorithm: farthest first
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].depth > items[j].depth
	})
	for _, d := range items {
		paint(dc, d)
	}

	return toTensor(dc.Image(), height, width), nil
}

func paint(dc *gg.Context, d drawable) {
	dc.ClearPath()
	dc.SetColor(d.colour)
	if d.circle {
		dc.DrawCircle(d.pts[0][0], d.pts[0][1], d.radius)
		dc.Fill()
		return
	}
	dc.MoveTo(d.pts[0][0], d.pts[0][1])
	for _, pt := range d.pts[1:] {
		dc.LineTo(pt[0], pt[1])
	}
	dc.ClosePath()
	dc.Fill()
}

// projectFace culls back faces and faces crossing the near plane
func (p projector) projectFace(f face) (drawable, bool) {
	centroid := r3.Vec{}
	for _, v := range f.pts {
		centroid = geometry.Add(centroid, v)
	}
	centroid = geometry.Scale(1/float64(len(f.pts)), centroid)

	if f.normal != (r3.Vec{}) &&
		geometry.Dot(f.normal, geometry.Sub(p.pos, centroid)) <= 0 {
		return drawable{}, false
	}

	d := drawable{pts: make([][2]float64, len(f.pts))}
	for i, v := range f.pts {
		c := p.toCamera(v)
		if -c.Z < nearPlane {
			return drawable{}, false
		}
		d.depth += -c.Z
		x, y := p.toPixel(c)
		d.pts[i] = [2]float64{x, y}
	}
	d.depth /= float64(len(f.pts))
	d.colour = shade(f.colour, f.normal)
	return d, true
}

func (p projector) projectDisc(s disc) (drawable, bool) {
	c := p.toCamera(s.centre)
	if -c.Z < nearPlane {
		return drawable{}, false
	}
	x, y := p.toPixel(c)
	return drawable{
		depth:  -c.Z,
		pts:    [][2]float64{{x, y}},
		circle: true,
		radius: p.f * s.radius / -c.Z,
		colour: s.colour,
	}, true
}

// shade applies simple diffuse lighting
func shade(c color.RGBA, normal r3.Vec) color.RGBA {
	k := 0.8
	if normal != (r3.Vec{}) {
		k = 0.55 + 0.45*math.Max(0, geometry.Dot(normal, light))
	}
	return color.RGBA{
		R: uint8(float64(c.R) * k),
		G: uint8(float64(c.G) * k),
		B: uint8(float64(c.B) * k),
		A: c.A,
	}
}

func toTensor(img image.Image, height, width int) *tensor.Dense {
	data := make([]uint8, height*width*3)
	b := img.Bounds()
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := color.RGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.RGBA)
			i := (y*width + x) * 3
			data[i], data[i+1], data[i+2] = c.R, c.G, c.B
		}
	}
	return tensor.New(tensor.WithShape(height, width, 3),
		tensor.WithBacking(data))
}

// tableFaces tiles the table top so that cameras close to the table can
// still draw the tiles in front of them
func tableFaces() []face {
	faces := make([]face, 0, tableTiles*tableTiles)
	dx := (tableHigh.X - tableLow.X) / tableTiles
	dy := (tableHigh.Y - tableLow.Y) / tableTiles
	for i := 0; i < tableTiles; i++ {
		for j := 0; j < tableTiles; j++ {
			x, y := tableLow.X+float64(i)*dx, tableLow.Y+float64(j)*dy
			faces = append(faces, face{
				pts: []r3.Vec{
					{X: x, Y: y}, {X: x + dx, Y: y},
					{X: x + dx, Y: y + dy}, {X: x, Y: y + dy},
				},
				normal: r3.Vec{Z: 1},
				colour: tableColour,
			})
		}
	}
	return faces
}

// faces returns every face of the scene above the table
func (t *Tabletop) faces() []face {
	var faces []face
	for _, s := range t.slabs {
		faces = append(faces, boxFaces(s.centre, s.half, s.colour)...)
	}

	o := t.obj
	c := t.centre(o)
	switch {
	case o.radius > 0:
		faces = append(faces, cylinderFaces(c, o.radius, o.half.Z,
			o.colour)...)
	default:
		faces = append(faces, boxFaces(c, o.half, o.colour)...)
	}
	if o.slide != nil {
		handle := t.ObjPos()
		faces = append(faces, boxFaces(handle,
			r3.Vec{X: 0.03, Y: 0.01, Z: 0.01}, handleColour)...)
	}

	hand := t.HandPos()
	faces = append(faces, boxFaces(geometry.Add(hand, r3.Vec{Z: 0.02}),
		r3.Vec{X: 0.035, Y: 0.025, Z: 0.02}, handColour)...)
	right, left := t.EndEffectors()
	for _, f := range []r3.Vec{right, left} {
		faces = append(faces, boxFaces(geometry.Add(f, r3.Vec{Z: 0.01}),
			r3.Vec{X: fingerHalfWidth, Y: 0.012, Z: 0.02}, fingerColour)...)
	}
	return faces
}

func boxFaces(c, h r3.Vec, colour color.RGBA) []face {
	v := func(sx, sy, sz float64) r3.Vec {
		return r3.Vec{X: c.X + sx*h.X, Y: c.Y + sy*h.Y, Z: c.Z + sz*h.Z}
	}
	return []face{
		{pts: []r3.Vec{v(-1, -1, 1), v(1, -1, 1), v(1, 1, 1), v(-1, 1, 1)},
			normal: r3.Vec{Z: 1}, colour: colour},
		{pts: []r3.Vec{v(-1, -1, -1), v(-1, 1, -1), v(1, 1, -1), v(1, -1, -1)},
			normal: r3.Vec{Z: -1}, colour: colour},
		{pts: []r3.Vec{v(1, -1, -1), v(1, 1, -1), v(1, 1, 1), v(1, -1, 1)},
			normal: r3.Vec{X: 1}, colour: colour},
		{pts: []r3.Vec{v(-1, -1, -1), v(-1, -1, 1), v(-1, 1, 1), v(-1, 1, -1)},
			normal: r3.Vec{X: -1}, colour: colour},
		{pts: []r3.Vec{v(-1, 1, -1), v(-1, 1, 1), v(1, 1, 1), v(1, 1, -1)},
			normal: r3.Vec{Y: 1}, colour: colour},
		{pts: []r3.Vec{v(-1, -1, -1), v(1, -1, -1), v(1, -1, 1), v(-1, -1, 1)},
			normal: r3.Vec{Y: -1}, colour: colour},
	}
}

func cylinderFaces(c r3.Vec, radius, halfHeight float64,
	colour color.RGBA) []face {
	rim := make([]r3.Vec, cylinderFacets)
	for i := range rim {
		a := 2 * math.Pi * float64(i) / cylinderFacets
		rim[i] = r3.Vec{X: radius * math.Cos(a), Y: radius * math.Sin(a)}
	}

	top := make([]r3.Vec, cylinderFacets)
	faces := make([]face, 0, cylinderFacets+1)
	for i := range rim {
		next := rim[(i+1)%cylinderFacets]
		top[i] = geometry.Add(c, r3.Vec{X: rim[i].X, Y: rim[i].Y,
			Z: halfHeight})

		mid := geometry.Unit(geometry.Add(rim[i], next))
		faces = append(faces, face{
			pts: []r3.Vec{
				geometry.Add(c, r3.Vec{X: rim[i].X, Y: rim[i].Y, Z: -halfHeight}),
				geometry.Add(c, r3.Vec{X: next.X, Y: next.Y, Z: -halfHeight}),
				geometry.Add(c, r3.Vec{X: next.X, Y: next.Y, Z: halfHeight}),
				geometry.Add(c, r3.Vec{X: rim[i].X, Y: rim[i].Y, Z: halfHeight}),
			},
			normal: mid,
			colour: colour,
		})
	}
	return append(faces, face{pts: top, normal: r3.Vec{Z: 1}, colour: colour})
}
