// Package opengl implements rhi.Renderer over OpenGL 4.6 core.
//
// Every call translates synchronously into glapi.Functions calls on the
// context current on the calling thread, so frames are not pipelined and
// BeginFrame and EndFrame do nothing. Pipeline objects are linked programs
// plus the state values they bake; binding one issues the baked values and
// then lets the state machine re-issue the dynamic ones that changed.
//
// Sampled image arrays use ARB bindless texture handles stored in a
// shader storage buffer at the array's binding when the driver advertises
// GL_ARB_bindless_texture. Otherwise an array of at most MaxImageArray
// images occupies consecutive texture units starting at its binding.
package opengl
