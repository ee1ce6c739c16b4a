package glapi

// Enum is a GLenum value.
type Enum uint32

// Object names.
type (
	Texture     uint32
	Buffer      uint32
	Framebuffer uint32
	Shader      uint32
	Program     uint32
	VertexArray uint32
)

// Error codes.
const (
	NO_ERROR          Enum = 0
	INVALID_ENUM      Enum = 0x0500
	INVALID_VALUE     Enum = 0x0501
	INVALID_OPERATION Enum = 0x0502
	OUT_OF_MEMORY     Enum = 0x0505
)

// Texture targets, parameters and filters.
const (
	TEXTURE_2D             Enum = 0x0DE1
	TEXTURE_2D_MULTISAMPLE Enum = 0x9100
	TEXTURE0               Enum = 0x84C0
	TEXTURE_MAG_FILTER     Enum = 0x2800
	TEXTURE_MIN_FILTER     Enum = 0x2801
	TEXTURE_WRAP_S         Enum = 0x2802
	TEXTURE_WRAP_T         Enum = 0x2803
	TEXTURE_MAX_LEVEL      Enum = 0x813D
	NEAREST                Enum = 0x2600
	LINEAR                 Enum = 0x2601
	NEAREST_MIPMAP_NEAREST Enum = 0x2700
	LINEAR_MIPMAP_NEAREST  Enum = 0x2701
	NEAREST_MIPMAP_LINEAR  Enum = 0x2702
	LINEAR_MIPMAP_LINEAR   Enum = 0x2703
	REPEAT                 Enum = 0x2901
	CLAMP_TO_EDGE          Enum = 0x812F
	MIRRORED_REPEAT        Enum = 0x8370
)

// Sized internal formats.
const (
	R8                 Enum = 0x8229
	RG8                Enum = 0x822B
	RGBA8              Enum = 0x8058
	SRGB8_ALPHA8       Enum = 0x8C43
	R32F               Enum = 0x822E
	RG32F              Enum = 0x8230
	R32UI              Enum = 0x8236
	RGBA16F            Enum = 0x881A
	RGBA32F            Enum = 0x8814
	DEPTH_COMPONENT32F Enum = 0x8CAC
	DEPTH24_STENCIL8   Enum = 0x88F0
)

// Pixel transfer formats and types.
const (
	RED             Enum = 0x1903
	RG              Enum = 0x8227
	RGBA            Enum = 0x1908
	BGRA            Enum = 0x80E1
	RED_INTEGER     Enum = 0x8D94
	DEPTH_COMPONENT Enum = 0x1902
	DEPTH_STENCIL   Enum = 0x84F9

	UNSIGNED_BYTE     Enum = 0x1401
	UNSIGNED_SHORT    Enum = 0x1403
	INT               Enum = 0x1404
	UNSIGNED_INT      Enum = 0x1405
	FLOAT             Enum = 0x1406
	HALF_FLOAT        Enum = 0x140B
	UNSIGNED_INT_24_8 Enum = 0x84FA
)

// Buffer targets and usages.
const (
	ARRAY_BUFFER             Enum = 0x8892
	ELEMENT_ARRAY_BUFFER     Enum = 0x8893
	UNIFORM_BUFFER           Enum = 0x8A11
	SHADER_STORAGE_BUFFER    Enum = 0x90D2
	DRAW_INDIRECT_BUFFER     Enum = 0x8F3F
	DISPATCH_INDIRECT_BUFFER Enum = 0x90EE
	COPY_READ_BUFFER         Enum = 0x8F36
	COPY_WRITE_BUFFER        Enum = 0x8F37
	STATIC_DRAW              Enum = 0x88E4
	DYNAMIC_DRAW             Enum = 0x88E8
)

// Framebuffer targets, attachments and buffers.
const (
	FRAMEBUFFER              Enum = 0x8D40
	READ_FRAMEBUFFER         Enum = 0x8CA8
	DRAW_FRAMEBUFFER         Enum = 0x8CA9
	COLOR_ATTACHMENT0        Enum = 0x8CE0
	DEPTH_ATTACHMENT         Enum = 0x8D00
	DEPTH_STENCIL_ATTACHMENT Enum = 0x821A
	FRAMEBUFFER_COMPLETE     Enum = 0x8CD5
	FRAMEBUFFER_INCOMPLETE   Enum = 0x8CD6
	COLOR                    Enum = 0x1800
	DEPTH                    Enum = 0x1801
	BACK                     Enum = 0x0405
	NONE                     Enum = 0

	COLOR_BUFFER_BIT   uint32 = 0x00004000
	DEPTH_BUFFER_BIT   uint32 = 0x00000100
	STENCIL_BUFFER_BIT uint32 = 0x00000400
)

// Shader and program parameters.
const (
	FRAGMENT_SHADER Enum = 0x8B30
	VERTEX_SHADER   Enum = 0x8B31
	COMPUTE_SHADER  Enum = 0x91B9
	COMPILE_STATUS  Enum = 0x8B81
	LINK_STATUS     Enum = 0x8B82
	INFO_LOG_LENGTH Enum = 0x8B84
)

// Capabilities.
const (
	BLEND                         Enum = 0x0BE2
	CULL_FACE                     Enum = 0x0B44
	DEPTH_TEST                    Enum = 0x0B71
	STENCIL_TEST                  Enum = 0x0B90
	SCISSOR_TEST                  Enum = 0x0C11
	POLYGON_OFFSET_POINT          Enum = 0x2A01
	POLYGON_OFFSET_LINE           Enum = 0x2A02
	POLYGON_OFFSET_FILL           Enum = 0x8037
	PRIMITIVE_RESTART_FIXED_INDEX Enum = 0x8D69
	COLOR_LOGIC_OP                Enum = 0x0BF2
	LINE_SMOOTH                   Enum = 0x0B20
	FRAMEBUFFER_SRGB              Enum = 0x8DB9
	MULTISAMPLE                   Enum = 0x809D
)

// Comparison functions.
const (
	NEVER    Enum = 0x0200
	LESS     Enum = 0x0201
	EQUAL    Enum = 0x0202
	LEQUAL   Enum = 0x0203
	GREATER  Enum = 0x0204
	NOTEQUAL Enum = 0x0205
	GEQUAL   Enum = 0x0206
	ALWAYS   Enum = 0x0207
)

// Blend factors and equations.
const (
	ZERO                     Enum = 0
	ONE                      Enum = 1
	SRC_COLOR                Enum = 0x0300
	ONE_MINUS_SRC_COLOR      Enum = 0x0301
	SRC_ALPHA                Enum = 0x0302
	ONE_MINUS_SRC_ALPHA      Enum = 0x0303
	DST_ALPHA                Enum = 0x0304
	ONE_MINUS_DST_ALPHA      Enum = 0x0305
	DST_COLOR                Enum = 0x0306
	ONE_MINUS_DST_COLOR      Enum = 0x0307
	SRC_ALPHA_SATURATE       Enum = 0x0308
	CONSTANT_COLOR           Enum = 0x8001
	ONE_MINUS_CONSTANT_COLOR Enum = 0x8002

	FUNC_ADD              Enum = 0x8006
	MIN                   Enum = 0x8007
	MAX                   Enum = 0x8008
	FUNC_SUBTRACT         Enum = 0x800A
	FUNC_REVERSE_SUBTRACT Enum = 0x800B
)

// Stencil operations.
const (
	KEEP      Enum = 0x1E00
	REPLACE   Enum = 0x1E01
	INCR      Enum = 0x1E02
	DECR      Enum = 0x1E03
	INVERT    Enum = 0x150A
	INCR_WRAP Enum = 0x8507
	DECR_WRAP Enum = 0x8508
)

// Faces, winding and polygon modes.
const (
	FRONT          Enum = 0x0404
	FRONT_AND_BACK Enum = 0x0408
	CW             Enum = 0x0900
	CCW            Enum = 0x0901
	POINT          Enum = 0x1B00
	LINE           Enum = 0x1B01
	FILL           Enum = 0x1B02
)

// Primitive modes.
const (
	POINTS         Enum = 0x0000
	LINES          Enum = 0x0001
	LINE_STRIP     Enum = 0x0003
	TRIANGLES      Enum = 0x0004
	TRIANGLE_STRIP Enum = 0x0005
)

// LOGIC_OP_CLEAR is the first of the sixteen logic operations, which are
// numbered consecutively up to SET.
const (
	LOGIC_OP_CLEAR Enum = 0x1500
	COPY           Enum = 0x1503
	SET            Enum = 0x150F
)

// Image unit access.
const (
	READ_ONLY  Enum = 0x88B8
	WRITE_ONLY Enum = 0x88B9
	READ_WRITE Enum = 0x88BA
)

// Memory barrier bits.
const (
	VERTEX_ATTRIB_ARRAY_BARRIER_BIT uint32 = 0x00000001
	ELEMENT_ARRAY_BARRIER_BIT       uint32 = 0x00000002
	UNIFORM_BARRIER_BIT             uint32 = 0x00000004
	TEXTURE_FETCH_BARRIER_BIT       uint32 = 0x00000008
	SHADER_IMAGE_ACCESS_BARRIER_BIT uint32 = 0x00000020
	COMMAND_BARRIER_BIT             uint32 = 0x00000040
	TEXTURE_UPDATE_BARRIER_BIT      uint32 = 0x00000100
	BUFFER_UPDATE_BARRIER_BIT       uint32 = 0x00000200
	FRAMEBUFFER_BARRIER_BIT         uint32 = 0x00000400
	SHADER_STORAGE_BARRIER_BIT      uint32 = 0x00002000
	ALL_BARRIER_BITS                uint32 = 0xFFFFFFFF
)

// Integer and string queries.
const (
	MAX_TEXTURE_SIZE                 Enum = 0x0D33
	MAX_SAMPLES                      Enum = 0x8D57
	UNIFORM_BUFFER_OFFSET_ALIGNMENT  Enum = 0x8A34
	MAX_COMBINED_TEXTURE_IMAGE_UNITS Enum = 0x8B4D
	VENDOR                           Enum = 0x1F00
	RENDERER                         Enum = 0x1F01
	VERSION                          Enum = 0x1F02
)

// ExtBindlessTexture names the bindless texture extension.
const ExtBindlessTexture = "GL_ARB_bindless_texture"
