//go:build linux

package drmoutput

import (
	"fmt"
	"unsafe"

	"github.com/ebitengine/purego"
)

// GLES2 bindings for the compositing renderer (§4.5 "construct a GL
// renderer"; §12 "composite the three layers, cursor on top"). Same
// dlopen/RegisterLibFunc idiom as gbm.go and egl.go.
var (
	libGLESv2 uintptr

	glClearColor    func(r, g, b, a float32)
	glClear         func(mask uint32)
	glViewport      func(x, y, width, height int32)
	glCreateShader  func(shaderType uint32) uint32
	glShaderSource  func(shader uint32, count int32, strings **byte, length *int32)
	glCompileShader func(shader uint32)
	glCreateProgram func() uint32
	glAttachShader  func(program, shader uint32)
	glLinkProgram   func(program uint32)
	glUseProgram    func(program uint32)
	glGetAttribLocation  func(program uint32, name *byte) int32
	glGetUniformLocation func(program uint32, name *byte) int32
	glEnableVertexAttribArray func(index uint32)
	glVertexAttribPointer     func(index uint32, size int32, attribType uint32, normalized byte, stride int32, pointer unsafe.Pointer)
	glDrawArrays    func(mode uint32, first, count int32)
	glGenTextures   func(n int32, textures *uint32)
	glDeleteTextures func(n int32, textures *uint32)
	glBindTexture   func(target uint32, texture uint32)
	glTexImage2D    func(target uint32, level, internalFormat, width, height, border int32, format, texType uint32, pixels unsafe.Pointer)
	glTexParameteri func(target, pname uint32, param int32)
	glUniform1i     func(location int32, v0 int32)
	glUniform4f     func(location int32, v0, v1, v2, v3 float32)
	glEnable        func(cap uint32)
	glBlendFunc     func(sfactor, dfactor uint32)
	glReadPixels    func(x, y, width, height int32, format, pixelType uint32, pixels unsafe.Pointer)
)

const (
	glColorBufferBit = 0x00004000
	glVertexShader   = 0x8B31
	glFragmentShader = 0x8B30
	glTriangleFan    = 0x0006
	glFloat          = 0x1406
	glFalse          = 0
	glTexture2D      = 0x0DE1
	glRGBA           = 0x1908
	glUnsignedByte   = 0x1401
	glTextureMinFilter = 0x2801
	glTextureMagFilter = 0x2800
	glLinear         = 0x2601
	glBlend          = 0x0BE2
	glSrcAlpha       = 0x0302
	glOneMinusSrcAlpha = 0x0303
)

func loadGLES2() error {
	if libGLESv2 != 0 {
		return nil
	}
	var err error
	for _, path := range []string{"libGLESv2.so.2", "libGLESv2.so"} {
		libGLESv2, err = purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err == nil {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("dlopen libGLESv2: %w", err)
	}

	purego.RegisterLibFunc(&glClearColor, libGLESv2, "glClearColor")
	purego.RegisterLibFunc(&glClear, libGLESv2, "glClear")
	purego.RegisterLibFunc(&glViewport, libGLESv2, "glViewport")
	purego.RegisterLibFunc(&glCreateShader, libGLESv2, "glCreateShader")
	purego.RegisterLibFunc(&glShaderSource, libGLESv2, "glShaderSource")
	purego.RegisterLibFunc(&glCompileShader, libGLESv2, "glCompileShader")
	purego.RegisterLibFunc(&glCreateProgram, libGLESv2, "glCreateProgram")
	purego.RegisterLibFunc(&glAttachShader, libGLESv2, "glAttachShader")
	purego.RegisterLibFunc(&glLinkProgram, libGLESv2, "glLinkProgram")
	purego.RegisterLibFunc(&glUseProgram, libGLESv2, "glUseProgram")
	purego.RegisterLibFunc(&glGetAttribLocation, libGLESv2, "glGetAttribLocation")
	purego.RegisterLibFunc(&glGetUniformLocation, libGLESv2, "glGetUniformLocation")
	purego.RegisterLibFunc(&glEnableVertexAttribArray, libGLESv2, "glEnableVertexAttribArray")
	purego.RegisterLibFunc(&glVertexAttribPointer, libGLESv2, "glVertexAttribPointer")
	purego.RegisterLibFunc(&glDrawArrays, libGLESv2, "glDrawArrays")
	purego.RegisterLibFunc(&glGenTextures, libGLESv2, "glGenTextures")
	purego.RegisterLibFunc(&glDeleteTextures, libGLESv2, "glDeleteTextures")
	purego.RegisterLibFunc(&glBindTexture, libGLESv2, "glBindTexture")
	purego.RegisterLibFunc(&glTexImage2D, libGLESv2, "glTexImage2D")
	purego.RegisterLibFunc(&glTexParameteri, libGLESv2, "glTexParameteri")
	purego.RegisterLibFunc(&glUniform1i, libGLESv2, "glUniform1i")
	purego.RegisterLibFunc(&glUniform4f, libGLESv2, "glUniform4f")
	purego.RegisterLibFunc(&glEnable, libGLESv2, "glEnable")
	purego.RegisterLibFunc(&glBlendFunc, libGLESv2, "glBlendFunc")
	purego.RegisterLibFunc(&glReadPixels, libGLESv2, "glReadPixels")
	return nil
}

const vertexShaderSrc = `
attribute vec2 aPos;
attribute vec2 aTexCoord;
varying vec2 vTexCoord;
uniform vec4 uRect;
void main() {
	vec2 pos = uRect.xy + aPos * uRect.zw;
	gl_Position = vec4(pos, 0.0, 1.0);
	vTexCoord = aTexCoord;
}
`

const fragmentShaderSrc = `
precision mediump float;
varying vec2 vTexCoord;
uniform sampler2D uTexture;
void main() {
	gl_FragColor = texture2D(uTexture, vTexCoord);
}
`

// glRenderer composites surface quads into the currently bound EGL
// surface, one textured rectangle per surface (§12 "pixel data follows
// via shared memory; render as a textured quad").
type glRenderer struct {
	program   uint32
	posAttr   int32
	texAttr   int32
	rectUniform int32
	texUniform  int32
	quadVerts []float32
	textures  map[uint32]uint32 // slot key -> GL texture name, reused across frames
}

func newGLRenderer() (*glRenderer, error) {
	if err := loadGLES2(); err != nil {
		return nil, err
	}

	vs := compileShader(glVertexShader, vertexShaderSrc)
	fs := compileShader(glFragmentShader, fragmentShaderSrc)
	if vs == 0 || fs == 0 {
		return nil, fmt.Errorf("shader compilation failed")
	}

	program := glCreateProgram()
	glAttachShader(program, vs)
	glAttachShader(program, fs)
	glLinkProgram(program)

	posName := append([]byte("aPos"), 0)
	texName := append([]byte("aTexCoord"), 0)
	rectName := append([]byte("uRect"), 0)
	texUniformName := append([]byte("uTexture"), 0)

	r := &glRenderer{
		program:     program,
		posAttr:     glGetAttribLocation(program, &posName[0]),
		texAttr:     glGetAttribLocation(program, &texName[0]),
		rectUniform: glGetUniformLocation(program, &rectName[0]),
		texUniform:  glGetUniformLocation(program, &texUniformName[0]),
		quadVerts: []float32{
			0, 0, 0, 1,
			1, 0, 1, 1,
			1, 1, 1, 0,
			0, 1, 0, 0,
		},
		textures: make(map[uint32]uint32),
	}

	glEnable(glBlend)
	glBlendFunc(glSrcAlpha, glOneMinusSrcAlpha)
	return r, nil
}

func compileShader(shaderType uint32, src string) uint32 {
	shader := glCreateShader(shaderType)
	cstr := append([]byte(src), 0)
	ptr := &cstr[0]
	glShaderSource(shader, 1, &ptr, nil)
	glCompileShader(shader)
	return shader
}

// quad is one composited surface: normalized device rectangle plus the
// raw pixel payload to upload as a texture.
type quad struct {
	slot          uint32
	x, y, w, h    float32 // NDC rect: x,y in [-1,1], w,h extent
	pixels        []byte
	width, height int
}

func (r *glRenderer) clear() {
	glClearColor(0, 0, 0, 1)
	glClear(glColorBufferBit)
}

func (r *glRenderer) setViewport(w, h int32) {
	glViewport(0, 0, w, h)
}

func (r *glRenderer) draw(q quad) {
	glUseProgram(r.program)

	tex, ok := r.textures[q.slot]
	if !ok {
		var name uint32
		glGenTextures(1, &name)
		r.textures[q.slot] = name
		tex = name
	}
	glBindTexture(glTexture2D, tex)
	glTexParameteri(glTexture2D, glTextureMinFilter, glLinear)
	glTexParameteri(glTexture2D, glTextureMagFilter, glLinear)
	if len(q.pixels) > 0 {
		glTexImage2D(glTexture2D, 0, glRGBA, int32(q.width), int32(q.height), 0,
			glRGBA, glUnsignedByte, unsafe.Pointer(&q.pixels[0]))
	}
	glUniform1i(r.texUniform, 0)
	glUniform4f(r.rectUniform, q.x, q.y, q.w, q.h)

	stride := int32(4 * 4)
	glEnableVertexAttribArray(uint32(r.posAttr))
	glVertexAttribPointer(uint32(r.posAttr), 2, glFloat, glFalse, stride, unsafe.Pointer(&r.quadVerts[0]))
	glEnableVertexAttribArray(uint32(r.texAttr))
	glVertexAttribPointer(uint32(r.texAttr), 2, glFloat, glFalse, stride, unsafe.Pointer(&r.quadVerts[2]))

	glDrawArrays(glTriangleFan, 0, 4)
}

// readPixels captures the last composited frame for screenshooter
// requests (§4.5 "screenshot readback").
func (r *glRenderer) readPixels(width, height int) []byte {
	buf := make([]byte, width*height*4)
	glReadPixels(0, 0, int32(width), int32(height), glRGBA, glUnsignedByte, unsafe.Pointer(&buf[0]))
	// glReadPixels returns rows bottom-up; flip them to top-to-bottom.
	stride := width * 4
	row := make([]byte, stride)
	for top, bottom := 0, height-1; top < bottom; top, bottom = top+1, bottom-1 {
		t := buf[top*stride : (top+1)*stride]
		b := buf[bottom*stride : (bottom+1)*stride]
		copy(row, t)
		copy(t, b)
		copy(b, row)
	}
	return buf
}

func (r *glRenderer) releaseSlot(slot uint32) {
	tex, ok := r.textures[slot]
	if !ok {
		return
	}
	glDeleteTextures(1, &tex)
	delete(r.textures, slot)
}
